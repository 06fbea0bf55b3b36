package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/songrip/internal/models"
)

var (
	_ list.Item = outcomeItem{}
)

// outcomeItem wraps [models.TrackOutcome] to implement [list.Item].
type outcomeItem struct {
	outcome models.TrackOutcome
}

func (i outcomeItem) FilterValue() string { return i.outcome.Track.Title }
func (i outcomeItem) Title() string {
	mark := styles.ok.Render("✓")
	switch {
	case !i.outcome.OK():
		mark = styles.err.Render("✗")
	case i.outcome.Skipped:
		mark = styles.help.Render("=")
	}
	return fmt.Sprintf("%s %02d  %s", mark, i.outcome.Ordinal, i.outcome.Track.Title)
}
func (i outcomeItem) Description() string {
	if !i.outcome.OK() {
		return fmt.Sprintf("%s • %s failed: %s", i.outcome.Track.Artist, i.outcome.Stage, i.outcome.Reason)
	}
	return i.outcome.Track.Artist
}

// outcomeItems orders failures first so they are visible without scrolling.
func outcomeItems(outcomes []models.TrackOutcome) []list.Item {
	items := make([]list.Item, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.OK() {
			items = append(items, outcomeItem{outcome: o})
		}
	}
	for _, o := range outcomes {
		if o.OK() {
			items = append(items, outcomeItem{outcome: o})
		}
	}
	return items
}
