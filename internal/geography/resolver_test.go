package geography

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu     sync.Mutex
	units  map[string][]Unit
	errs   map[string]error
	calls  []string
	blocks map[string]chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		units: map[string][]Unit{
			key(Region, ""): {
				{Code: "R2", Name: "Cagayan Valley"},
				{Code: "R1", Name: "Ilocos Region"},
				{Code: "R13", Name: "bicol region"},
			},
			key(Province, "R1"): {
				{Code: "P2", Name: "La Union"},
				{Code: "P1", Name: "Ilocos Norte"},
			},
			key(Province, "R2"): {{Code: "P9", Name: "Isabela"}},
			key(City, "P1"):     {{Code: "C1", Name: "Laoag"}},
			key(Barangay, "C1"): {{Code: "B1", Name: "Barangay 1"}},
		},
		errs:   map[string]error{},
		blocks: map[string]chan struct{}{},
	}
}

func key(level Level, parent string) string {
	return fmt.Sprintf("%s/%s", level, parent)
}

func (f *fakeFetcher) Children(ctx context.Context, level Level, parent string) ([]Unit, error) {
	k := key(level, parent)

	f.mu.Lock()
	f.calls = append(f.calls, k)
	block := f.blocks[k]
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[k]; err != nil {
		return nil, err
	}
	return f.units[k], nil
}

func loadedResolver(t *testing.T) (*Resolver, *fakeFetcher) {
	t.Helper()
	fetcher := newFakeFetcher()
	r := NewResolver(fetcher)
	require.NoError(t, r.LoadRegions(context.Background()))
	return r, fetcher
}

func TestLoadRegions_SortsByName(t *testing.T) {
	r, _ := loadedResolver(t)

	names := []string{}
	for _, u := range r.Snapshot().Regions {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"bicol region", "Cagayan Valley", "Ilocos Region"}, names)
}

func TestSelect_CascadesFetches(t *testing.T) {
	r, _ := loadedResolver(t)
	ctx := context.Background()

	unit, err := r.Select(ctx, Region, "R1")
	require.NoError(t, err)
	assert.Equal(t, "Ilocos Region", unit.Name)

	state := r.Snapshot()
	require.Len(t, state.Provinces, 2)
	assert.Equal(t, "Ilocos Norte", state.Provinces[0].Name)
	assert.Empty(t, state.Cities)
	assert.Empty(t, state.Barangays)

	_, err = r.Select(ctx, Province, "P1")
	require.NoError(t, err)
	_, err = r.Select(ctx, City, "C1")
	require.NoError(t, err)
	_, err = r.Select(ctx, Barangay, "B1")
	require.NoError(t, err)

	state = r.Snapshot()
	assert.Equal(t, "R1", state.Region)
	assert.Equal(t, "P1", state.Province)
	assert.Equal(t, "C1", state.City)
	assert.Equal(t, "B1", state.Barangay)
	assert.Len(t, state.Barangays, 1)
}

func TestSelect_NewRegionClearsDescendants(t *testing.T) {
	r, _ := loadedResolver(t)
	ctx := context.Background()

	_, err := r.Select(ctx, Region, "R1")
	require.NoError(t, err)
	_, err = r.Select(ctx, Province, "P1")
	require.NoError(t, err)
	_, err = r.Select(ctx, City, "C1")
	require.NoError(t, err)

	_, err = r.Select(ctx, Region, "R13")
	require.NoError(t, err)

	state := r.Snapshot()
	assert.Equal(t, "R13", state.Region)
	assert.Empty(t, state.Provinces)
	assert.Empty(t, state.Cities)
	assert.Empty(t, state.Barangays)
	assert.Empty(t, state.Province)
	assert.Empty(t, state.City)
	assert.Empty(t, state.Barangay)
}

func TestSelect_EmptyChildCollection(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.units[key(Region, "")] = append(fetcher.units[key(Region, "")], Unit{Code: "99", Name: "Nowhere"})
	r := NewResolver(fetcher)
	ctx := context.Background()
	require.NoError(t, r.LoadRegions(ctx))

	_, err := r.Select(ctx, Region, "99")
	require.NoError(t, err)

	state := r.Snapshot()
	assert.Empty(t, state.Provinces)
	assert.Empty(t, state.Cities)
	assert.Empty(t, state.Barangays)

	_, err = r.Select(ctx, Province, "P1")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestSelect_UnknownCode(t *testing.T) {
	r, fetcher := loadedResolver(t)

	_, err := r.Select(context.Background(), Region, "R404")
	assert.ErrorIs(t, err, ErrUnknownUnit)
	assert.Equal(t, []string{key(Region, "")}, fetcher.calls)
}

func TestSelect_EmptyCodeClears(t *testing.T) {
	r, _ := loadedResolver(t)
	ctx := context.Background()

	_, err := r.Select(ctx, Region, "R1")
	require.NoError(t, err)

	_, err = r.Select(ctx, Region, "")
	require.NoError(t, err)

	state := r.Snapshot()
	assert.Empty(t, state.Region)
	assert.Empty(t, state.Provinces)
	assert.NotEmpty(t, state.Regions)
}

func TestFetchFailure_RetryIsIdempotent(t *testing.T) {
	r, fetcher := loadedResolver(t)
	ctx := context.Background()
	fetcher.errs[key(Province, "R1")] = errors.New("502 bad gateway")

	unit, err := r.Select(ctx, Region, "R1")
	assert.Equal(t, "R1", unit.Code)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, Province, fetchErr.Level)
	assert.Equal(t, "R1", fetchErr.Parent)
	assert.Empty(t, r.Snapshot().Provinces)
	assert.True(t, r.Failed())

	assert.ErrorIs(t, r.Retry(ctx), ErrFetchFailed)

	delete(fetcher.errs, key(Province, "R1"))
	require.NoError(t, r.Retry(ctx))
	assert.Len(t, r.Snapshot().Provinces, 2)
	assert.False(t, r.Failed())

	calls := len(fetcher.calls)
	require.NoError(t, r.Retry(ctx))
	require.NoError(t, r.Retry(ctx))
	assert.Len(t, fetcher.calls, calls, "retry without a pending failure must not fetch")
}

func TestRetry_DroppedWhenParentChanged(t *testing.T) {
	r, fetcher := loadedResolver(t)
	ctx := context.Background()
	fetcher.errs[key(Province, "R1")] = errors.New("timeout")

	_, err := r.Select(ctx, Region, "R1")
	require.Error(t, err)

	_, err = r.Select(ctx, Region, "R2")
	require.NoError(t, err)

	require.NoError(t, r.Retry(ctx))
	assert.Equal(t, "Isabela", r.Snapshot().Provinces[0].Name)
}

func TestSupersededResponseIsDropped(t *testing.T) {
	r, fetcher := loadedResolver(t)
	ctx := context.Background()

	release := make(chan struct{})
	fetcher.blocks[key(Province, "R1")] = release

	done := make(chan error, 1)
	go func() {
		_, err := r.Select(ctx, Region, "R1")
		done <- err
	}()

	// Wait until the slow fetch is in flight.
	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		for _, call := range fetcher.calls {
			if call == key(Province, "R1") {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	_, err := r.Select(ctx, Region, "R2")
	require.NoError(t, err)

	close(release)
	assert.ErrorIs(t, <-done, ErrSuperseded)

	state := r.Snapshot()
	assert.Equal(t, "R2", state.Region)
	require.Len(t, state.Provinces, 1)
	assert.Equal(t, "P9", state.Provinces[0].Code)
}

func TestFilter(t *testing.T) {
	units := []Unit{
		{Code: "1", Name: "San Fernando"},
		{Code: "2", Name: "Fernandez"},
		{Code: "3", Name: "Laoag"},
		{Code: "4", Name: "Ferrol"},
	}

	t.Run("prefix matches first", func(t *testing.T) {
		got := Filter(units, "fer", 0)
		assert.Equal(t, []string{"2", "4", "1"}, codes(got))
	})

	t.Run("limit", func(t *testing.T) {
		assert.Len(t, Filter(units, "", 2), 2)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, Filter(units, "manila", 25))
	})
}

func codes(units []Unit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Code
	}
	return out
}

func TestLevel(t *testing.T) {
	child, ok := Region.Child()
	assert.True(t, ok)
	assert.Equal(t, Province, child)

	_, ok = Barangay.Child()
	assert.False(t, ok)

	_, ok = Region.Parent()
	assert.False(t, ok)

	assert.Equal(t, "cities-municipalities", City.String())
}
