package shared

import (
	"fmt"
	"os/exec"
)

var lookPath = exec.LookPath

// pythonCandidates lists interpreter names to try per platform, in order.
func pythonCandidates(goos string) []string {
	if goos == "windows" {
		return []string{"python", "py", "python3"}
	}
	return []string{"python3", "python"}
}

// ResolvePython returns the interpreter used to run collaborator scripts.
//
// A configured path wins when it resolves. Otherwise the platform's default
// names are searched on PATH. Called once at startup; the result is injected
// into the collaborators.
func ResolvePython(configured string) (string, error) {
	if configured != "" {
		p, err := lookPath(configured)
		if err != nil {
			return "", fmt.Errorf("%w: python_path %q: %v", ErrToolNotInstalled, configured, err)
		}
		return p, nil
	}

	for _, name := range pythonCandidates(getRuntime()) {
		if p, err := lookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no python interpreter found on PATH", ErrToolNotInstalled)
}
