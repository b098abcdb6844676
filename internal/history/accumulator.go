package history

import (
	"sort"
	"sync"
	"time"

	"tradewatch/internal/snapshot"
)

// Accumulator holds the portfolio-value series across engine invocations.
// Each engine report carries its own view of the history; Append merges those
// views into one monotonically ordered series. By-timestamp replacement makes
// re-deliveries of the same report a no-op.
type Accumulator struct {
	mu     sync.RWMutex
	points []snapshot.HistoryPoint
	now    func() time.Time
}

func NewAccumulator() *Accumulator {
	return &Accumulator{now: time.Now}
}

// Seed replaces the whole series, typically with rows loaded from the store
// at startup. The input is normalized the same way Append output is.
func (a *Accumulator) Seed(points []snapshot.HistoryPoint) {
	merged := mergePoints(nil, points)
	a.mu.Lock()
	a.points = merged
	a.mu.Unlock()
}

// Append merges incoming points into the series: a point whose timestamp is
// already present replaces the stored value, new timestamps are inserted in
// order. The series slice is swapped atomically, so concurrent readers see
// either the old or the new series, never a partial merge.
func (a *Accumulator) Append(points []snapshot.HistoryPoint) {
	if len(points) == 0 {
		return
	}
	a.mu.Lock()
	a.points = mergePoints(a.points, points)
	a.mu.Unlock()
}

// Latest returns the newest point, or false when the series is empty.
func (a *Accumulator) Latest() (snapshot.HistoryPoint, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.points) == 0 {
		return snapshot.HistoryPoint{}, false
	}
	return a.points[len(a.points)-1], true
}

func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.points)
}

// Window returns a copy of the selected span. LastNHours cuts at wall-clock
// now minus n hours, so a series that stopped updating windows down to empty
// rather than re-centering on its last sample.
func (a *Accumulator) Window(w Window) []snapshot.HistoryPoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.points) == 0 {
		return nil
	}
	if w.hours <= 0 {
		out := make([]snapshot.HistoryPoint, len(a.points))
		copy(out, a.points)
		return out
	}
	cutoff := a.now().Add(-time.Duration(w.hours) * time.Hour)
	// Boundary is inclusive: a point exactly at the cutoff stays in.
	start := sort.Search(len(a.points), func(i int) bool {
		return !a.points[i].Timestamp.Before(cutoff)
	})
	out := make([]snapshot.HistoryPoint, len(a.points)-start)
	copy(out, a.points[start:])
	return out
}

// Window selects a span of the series. The zero value selects everything.
type Window struct {
	hours int
}

func All() Window { return Window{} }

func LastNHours(n int) Window { return Window{hours: n} }

// mergePoints combines base and incoming into a fresh sorted slice with
// unique timestamps, incoming values winning on collision.
func mergePoints(base, incoming []snapshot.HistoryPoint) []snapshot.HistoryPoint {
	merged := make([]snapshot.HistoryPoint, 0, len(base)+len(incoming))
	merged = append(merged, base...)
	merged = append(merged, incoming...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	out := merged[:0]
	for _, p := range merged {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(p.Timestamp) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
