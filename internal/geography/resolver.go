package geography

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type failedFetch struct {
	level  Level
	parent string
}

// Resolver holds the cascading picker state for one user.
//
// Each level has a generation counter. Selecting a unit bumps the counters of every level below it,
// and a fetch result is only applied when its level's counter is unchanged, so a slow response
// for an abandoned parent never lands in the current state.
type Resolver struct {
	fetcher Fetcher

	mu          sync.Mutex
	state       State
	generations [Barangay + 1]uint64
	failed      *failedFetch
}

func NewResolver(fetcher Fetcher) *Resolver {
	return &Resolver{fetcher: fetcher}
}

// Snapshot returns the current state.
func (r *Resolver) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LoadRegions fetches the root collection. Existing selections are kept.
func (r *Resolver) LoadRegions(ctx context.Context) error {
	r.mu.Lock()
	gen := r.bump(Region)
	r.failed = nil
	r.mu.Unlock()

	return r.fetch(ctx, Region, "", gen)
}

// Select records code at level, clears all descendant state, then fetches the children of the selection.
// The returned unit is valid whenever the selection itself succeeded, even if the child fetch failed.
// An empty code clears the level and everything below it.
func (r *Resolver) Select(ctx context.Context, level Level, code string) (Unit, error) {
	r.mu.Lock()

	var unit Unit
	if code != "" {
		var ok bool
		if unit, ok = r.state.Lookup(level, code); !ok {
			r.mu.Unlock()
			return Unit{}, ErrUnknownUnit
		}
	}

	r.state = r.state.WithSelection(level, code)
	r.failed = nil

	child, hasChild := level.Child()
	var gen uint64
	for l, ok := level.Child(); ok; l, ok = l.Child() {
		g := r.bump(l)
		if l == child {
			gen = g
		}
	}
	r.mu.Unlock()

	if !hasChild || code == "" {
		return unit, nil
	}
	return unit, r.fetch(ctx, child, code, gen)
}

// Retry re-runs the last failed fetch if its parent is still selected. Calling it when nothing
// failed, or calling it again after it succeeded, does nothing.
func (r *Resolver) Retry(ctx context.Context) error {
	r.mu.Lock()
	failed := r.failed
	if failed == nil {
		r.mu.Unlock()
		return nil
	}
	if parent, ok := failed.level.Parent(); ok && r.state.Selected(parent) != failed.parent {
		r.failed = nil
		r.mu.Unlock()
		return nil
	}
	gen := r.bump(failed.level)
	r.mu.Unlock()

	return r.fetch(ctx, failed.level, failed.parent, gen)
}

// Failed reports whether the last fetch failed and has not been retried successfully.
func (r *Resolver) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed != nil
}

func (r *Resolver) bump(level Level) uint64 {
	r.generations[level]++
	return r.generations[level]
}

func (r *Resolver) fetch(ctx context.Context, level Level, parent string, gen uint64) error {
	if level != Region && parent == "" {
		return &FetchError{Level: level, Err: ErrMissingParent}
	}

	units, err := r.fetcher.Children(ctx, level, parent)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.generations[level] != gen {
		log.WithFields(log.Fields{"level": level.String(), "parent": parent}).Debug("Dropping superseded geography response")
		return ErrSuperseded
	}

	if err != nil {
		r.state = r.state.WithUnits(level, nil)
		r.failed = &failedFetch{level: level, parent: parent}
		return &FetchError{Level: level, Parent: parent, Err: err}
	}

	r.state = r.state.WithUnits(level, SortByName(units))
	r.failed = nil
	return nil
}

// SortByName returns a copy of units ordered by name using Filipino collation rules, case-insensitively.
func SortByName(units []Unit) []Unit {
	sorted := slices.Clone(units)
	collator := collate.New(language.Filipino, collate.IgnoreCase)
	slices.SortStableFunc(sorted, func(a, b Unit) int {
		return collator.CompareString(a.Name, b.Name)
	})
	return sorted
}

// Filter returns up to limit units whose name contains query, case-insensitively.
// Names starting with the query come first. An empty query returns the first limit units.
func Filter(units []Unit, query string, limit int) []Unit {
	query = strings.ToLower(strings.TrimSpace(query))

	matches := units
	if query != "" {
		prefix := lo.Filter(units, func(u Unit, _ int) bool {
			return strings.HasPrefix(strings.ToLower(u.Name), query)
		})
		rest := lo.Filter(units, func(u Unit, _ int) bool {
			name := strings.ToLower(u.Name)
			return !strings.HasPrefix(name, query) && strings.Contains(name, query)
		})
		matches = append(prefix, rest...)
	}

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
