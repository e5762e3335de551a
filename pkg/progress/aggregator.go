// Package progress turns a stream of agent text fragments into a stable
// step-by-step pass/fail indicator.
package progress

import (
	"cmp"
	"slices"
	"strings"

	"github.com/playwrighty/playwrighty/pkg/sentinel"
)

// turnSeparator keeps a marker from being stitched together across turns.
const turnSeparator = "\n"

// Update is what a single Feed produced.
type Update struct {
	// New holds one entry per marker occurrence first seen in this fragment,
	// in the order they appear in the text.
	New    []sentinel.Kind
	Passed int
	Failed int
}

// Indicator renders the new markers, e.g. "✓✗".
func (u Update) Indicator() string {
	return render(u.New)
}

// Aggregator accumulates streamed fragments for a whole run. It re-scans the
// cumulative buffer on every fragment so that a phrase split across fragment
// boundaries is counted exactly once. Counts never decrease.
//
// An Aggregator is not safe for concurrent use; a run feeds it sequentially.
type Aggregator struct {
	markers sentinel.Markers

	text    strings.Builder
	turn    strings.Builder
	started bool

	passed  int
	failed  int
	history []sentinel.Kind
}

func New(markers sentinel.Markers) *Aggregator {
	return &Aggregator{markers: markers}
}

// NextTurn starts a new agent turn. Text fed afterwards is separated from
// the previous turn so that markers cannot span turns.
func (a *Aggregator) NextTurn() {
	if a.started {
		a.text.WriteString(turnSeparator)
	}
	a.started = true
	a.turn.Reset()
}

// Feed appends fragment to the buffer and reports marker occurrences that
// were not present before.
func (a *Aggregator) Feed(fragment string) Update {
	a.started = true
	a.text.WriteString(fragment)
	a.turn.WriteString(fragment)
	return a.rescan()
}

// Rescan re-counts the current buffer without adding text. It never reports
// markers that were already reported.
func (a *Aggregator) Rescan() Update {
	return a.rescan()
}

func (a *Aggregator) rescan() Update {
	text := a.text.String()

	passed := sentinel.Indices(text, a.markers.Passed)
	failed := sentinel.Indices(text, a.markers.Failed)

	type hit struct {
		pos  int
		kind sentinel.Kind
	}
	var hits []hit
	if len(passed) > a.passed {
		for _, pos := range passed[a.passed:] {
			hits = append(hits, hit{pos: pos, kind: sentinel.Passed})
		}
		a.passed = len(passed)
	}
	if len(failed) > a.failed {
		for _, pos := range failed[a.failed:] {
			hits = append(hits, hit{pos: pos, kind: sentinel.Failed})
		}
		a.failed = len(failed)
	}
	slices.SortStableFunc(hits, func(x, y hit) int { return cmp.Compare(x.pos, y.pos) })

	update := Update{Passed: a.passed, Failed: a.failed}
	for _, h := range hits {
		update.New = append(update.New, h.kind)
	}
	a.history = append(a.history, update.New...)

	return update
}

// Text is everything fed so far, with turns separated by a newline.
func (a *Aggregator) Text() string {
	return a.text.String()
}

// TurnText is the text fed since the last NextTurn.
func (a *Aggregator) TurnText() string {
	return a.turn.String()
}

func (a *Aggregator) Passed() int { return a.passed }

func (a *Aggregator) Failed() int { return a.failed }

// Indicator is the compact marker string for the whole run so far.
func (a *Aggregator) Indicator() string {
	return render(a.history)
}

func render(kinds []sentinel.Kind) string {
	var sb strings.Builder
	for _, k := range kinds {
		sb.WriteString(k.Symbol())
	}
	return sb.String()
}
