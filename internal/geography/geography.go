// Package geography resolves the region → province → city/municipality → barangay hierarchy
// used by address pickers. Selecting a unit always clears everything below it.
package geography

import (
	"context"
	"errors"
	"fmt"
)

// Level is one tier of the administrative hierarchy.
type Level int

const (
	Region Level = iota
	Province
	City
	Barangay
)

var levelNames = [...]string{"regions", "provinces", "cities-municipalities", "barangays"}

func (l Level) String() string {
	if l < Region || l > Barangay {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// Child returns the level below l. Barangays have no children.
func (l Level) Child() (Level, bool) {
	if l >= Barangay {
		return 0, false
	}
	return l + 1, true
}

// Parent returns the level above l. Regions have no parent.
func (l Level) Parent() (Level, bool) {
	if l <= Region {
		return 0, false
	}
	return l - 1, true
}

// Unit is a named administrative division.
type Unit struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Fetcher loads the units of a level. parentCode is empty for regions and required otherwise.
type Fetcher interface {
	Children(ctx context.Context, level Level, parentCode string) ([]Unit, error)
}

var (
	ErrFetchFailed   = errors.New("geography fetch failed")
	ErrMissingParent = errors.New("parent code is required")
	ErrUnknownUnit   = errors.New("unknown geography unit")
	ErrSuperseded    = errors.New("geography fetch superseded by a newer selection")
)

// FetchError is a failed lookup. It matches ErrFetchFailed.
type FetchError struct {
	Level  Level
	Parent string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Parent == "" {
		return fmt.Sprintf("fetching %s: %v", e.Level, e.Err)
	}
	return fmt.Sprintf("fetching %s of %s: %v", e.Level, e.Parent, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }
