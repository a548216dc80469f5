// Package fanin merges decoded values from every scan stream into one
// manifest completion check.
package fanin

import (
	"sync"

	"github.com/neyoyoyminoy/palletPortal/internal/manifest"
	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

// Outcome describes what one decoded value did to the found set.
type Outcome struct {
	// Code is the canonical manifest code, set when the value matched
	Code types.ManifestCode
	// NewMatch is true when the value verified a code for the first time
	NewMatch bool
	// AlreadyFound is true when the code had been verified before
	AlreadyFound bool
	// NotOnManifest is true when the value matched nothing
	NotOnManifest bool
	// Completed is true on the single accept that verifies the last code
	Completed bool
	// Found is the number of verified codes after this accept
	Found int
	// Expected is the manifest size
	Expected int
}

// Stats is a snapshot of fan-in counters.
type Stats struct {
	Seen       uint64 `json:"seen"`
	NewMatches uint64 `json:"new_matches"`
	Duplicates uint64 `json:"duplicates"`
	Misses     uint64 `json:"misses"`
}

// FanIn accumulates matches from concurrent decode streams against one
// manifest. One mutex makes match, add and completion-check a single atomic
// step: racing duplicate decodes can neither double-count a code nor fire
// completion twice.
type FanIn struct {
	matcher *manifest.Matcher

	mu        sync.Mutex
	found     map[string]struct{}
	completed bool
	stats     Stats
}

// New creates a fan-in with an empty found set.
func New(matcher *manifest.Matcher) *FanIn {
	return &FanIn{
		matcher: matcher,
		found:   make(map[string]struct{}, matcher.Expected()),
	}
}

// Accept classifies one decoded value and folds it into the found set.
// Safe for concurrent use by any number of decode streams.
func (f *FanIn) Accept(ev types.DecodedEvent) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.Seen++

	expected := f.matcher.Expected()
	match, ok := f.matcher.Match(ev.Raw)
	if !ok {
		f.stats.Misses++
		return Outcome{NotOnManifest: true, Found: len(f.found), Expected: expected}
	}

	key := match.Code.Key()
	if _, dup := f.found[key]; dup {
		f.stats.Duplicates++
		return Outcome{Code: match.Code, AlreadyFound: true, Found: len(f.found), Expected: expected}
	}

	f.found[key] = struct{}{}
	f.stats.NewMatches++
	out := Outcome{Code: match.Code, NewMatch: true, Found: len(f.found), Expected: expected}
	if len(f.found) == expected && !f.completed {
		f.completed = true
		out.Completed = true
	}
	return out
}

// Found returns the number of verified codes.
func (f *FanIn) Found() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.found)
}

// Expected returns the manifest size.
func (f *FanIn) Expected() int {
	return f.matcher.Expected()
}

// Completed reports whether every expected code has been verified.
func (f *FanIn) Completed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// FoundCodes returns the verified codes in manifest order.
func (f *FanIn) FoundCodes() []types.ManifestCode {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]types.ManifestCode, 0, len(f.found))
	for _, c := range f.matcher.Codes() {
		if _, ok := f.found[c.Key()]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot returns the current counters.
func (f *FanIn) Snapshot() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}
