package server

import (
	"net/http"
	"strings"
)

// BasicRouter is a simple HTTP router implementing the [Router] interface.
//
// Uses [http.ServeMux] internally for routing. Paths are matched exactly;
// anything unregistered is answered with a JSON 404.
type BasicRouter struct {
	mux         *http.ServeMux
	methods     map[string][]string
	middlewares []Middleware
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux:         http.NewServeMux(),
		methods:     map[string][]string{},
		middlewares: []Middleware{},
	}
}

// Use adds [Middleware] to the [Router] instance's middleware stack, applied in the order it's added.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a [Handler] for the specified HTTP method and path.
//
// The same path may be registered for several methods. Requests with any
// other method get a 405.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	wrapped := r.Apply(handler)
	method = strings.ToUpper(method)

	if _, seen := r.methods[path]; !seen {
		r.mux.Handle(path, r.dispatch(path))
	}
	r.methods[path] = append(r.methods[path], method)
	r.mux.Handle(method+" "+exact(path), wrapped)
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware.
//
// Middleware is applied in reverse order (last added wraps first).
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}

// dispatch answers requests that matched path but none of its methods.
func (r *BasicRouter) dispatch(path string) http.Handler {
	return r.Apply(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != path {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		w.Header().Set("Allow", strings.Join(r.methods[path], ", "))
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}))
}

// exact turns "/" into the pattern matching only the root path.
func exact(path string) string {
	if strings.HasSuffix(path, "/") {
		return path + "{$}"
	}
	return path
}
