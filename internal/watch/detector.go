// Package watch polls competition pages and turns scrape results into
// status transitions.
package watch

import "github.com/hoofs-app/hoofs/internal/model"

// Change classifies one poll of one event against its stored row.
type Change int

const (
	NoChange Change = iota
	StatusChanged
	Opened
	Closed
)

func (c Change) String() string {
	switch c {
	case StatusChanged:
		return "status_changed"
	case Opened:
		return "opened"
	case Closed:
		return "closed"
	default:
		return "no_change"
	}
}

// Detect compares a stored event row with a fresh snapshot. Opened fires only
// when the page is open and the stored status was not already an open one, so
// repeated polls of an open page stay quiet and a re-opening after a closure
// fires again. An unfetched snapshot never changes anything.
func Detect(pre model.Event, post model.Snapshot) Change {
	if !post.Fetched {
		return NoChange
	}
	switch {
	case post.IsOpen && !pre.Status.Open():
		return Opened
	case pre.IsOpen && !post.IsOpen:
		return Closed
	case post.Status != pre.Status:
		return StatusChanged
	default:
		return NoChange
	}
}
