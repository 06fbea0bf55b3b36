package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songrip/internal/models"
)

// jobView is the JSON shape of a history entry.
type jobView struct {
	ID          string                `json:"id"`
	Number      int                   `json:"number"`
	Kind        string                `json:"kind"`
	URL         string                `json:"url"`
	Name        string                `json:"name,omitempty"`
	Directory   string                `json:"directory,omitempty"`
	Status      models.JobStatus      `json:"status"`
	TrackCount  int                   `json:"trackCount"`
	Succeeded   int                   `json:"succeeded"`
	Failed      int                   `json:"failed"`
	Excluded    int                   `json:"excluded"`
	Error       string                `json:"error,omitempty"`
	StartedAt   time.Time             `json:"startedAt"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`
	Tracks      []models.TrackOutcome `json:"tracks,omitempty"`
}

func newJobView(j *models.Job, outcomes []models.TrackOutcome) jobView {
	return jobView{
		ID:          j.ID,
		Number:      j.Sequence,
		Kind:        j.Kind.String(),
		URL:         j.Reference,
		Name:        j.Name,
		Directory:   j.Directory,
		Status:      j.Status,
		TrackCount:  j.TrackCount,
		Succeeded:   j.Succeeded,
		Failed:      j.Failed,
		Excluded:    j.Excluded,
		Error:       j.ErrorMessage,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Tracks:      outcomes,
	}
}

// History lists recent jobs, shows one job's per-track outcomes, or deletes a job.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	jobs, err := r.history()
	if err != nil {
		return err
	}

	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return r.listJobs(ctx, cmd)
	}

	job, err := jobs.Get(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("delete") {
		if err := jobs.Delete(ctx, job.ID); err != nil {
			return err
		}
		r.writePlain("Deleted job #%d (%s)\n", job.Sequence, job.ID)
		return nil
	}

	outcomes, err := jobs.Outcomes(ctx, job.ID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(newJobView(job, outcomes), true)
	}

	r.writePlainHeader(fmt.Sprintf("Job #%d: %s", job.Sequence, jobTitle(job)))
	r.writePlain("ID: %s\n", job.ID)
	r.writePlain("URL: %s\n", job.Reference)
	r.writePlain("Status: %s\n", job.Status)
	if job.Directory != "" {
		r.writePlain("Folder: %s\n", job.Directory)
	}
	r.writePlain("Started: %s\n", job.StartedAt.Local().Format(time.DateTime))
	if job.CompletedAt != nil {
		r.writePlain("Took: %s\n", job.CompletedAt.Sub(job.StartedAt).Round(time.Second))
	}
	if job.ErrorMessage != "" {
		r.writePlain("Error: %s\n", job.ErrorMessage)
	}
	if job.Kind == models.KindPlaylist {
		r.writePlain("Tracks: %d ok, %d failed, %d excluded of %d\n", job.Succeeded, job.Failed, job.Excluded, job.TrackCount)
	}

	if len(outcomes) > 0 {
		r.writePlain("\n")
		for _, o := range outcomes {
			if o.OK() {
				r.writePlain("  ✓ %02d. %s\n", o.Ordinal, o.Track)
			} else {
				r.writePlain("  ✗ %02d. %s [%s] %s\n", o.Ordinal, o.Track, o.Stage, o.Reason)
			}
		}
	}
	return nil
}

func (r *Runner) listJobs(ctx context.Context, cmd *cli.Command) error {
	jobs, err := r.history()
	if err != nil {
		return err
	}

	list, err := jobs.List(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]jobView, 0, len(list))
		for _, j := range list {
			views = append(views, newJobView(j, nil))
		}
		return r.writeJSON(views, true)
	}

	if len(list) == 0 {
		r.writePlain("No jobs recorded yet.\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Recent jobs (%d)", len(list)))
	for _, j := range list {
		r.writePlain("#%-4d %-9s %-8s %s\n", j.Sequence, j.Status, j.Kind, jobTitle(j))
		if j.Kind == models.KindPlaylist && j.Status != models.JobRunning {
			r.writePlain("      %d/%d downloaded, %d failed\n", j.Succeeded, j.TrackCount, j.Failed)
		}
	}
	return nil
}

func jobTitle(j *models.Job) string {
	if j.Name != "" {
		return j.Name
	}
	return j.Reference
}
