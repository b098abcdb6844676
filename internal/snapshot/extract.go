package snapshot

import "strings"

// A strategy inspects the raw text and either claims it (returning a
// snapshot) or declares itself not applicable so the next one gets a turn.
type strategyFunc func(raw string) (*Snapshot, bool)

// Strategies are tried in priority order; newer engine formats first. The
// opaque fallback never declines, so Extract only fails on empty input.
var strategies = []struct {
	name string
	fn   strategyFunc
}{
	{"json", extractStructuredJSON},
	{"tagged", extractTaggedBlock},
	{"opaque", extractOpaqueText},
}

// Extract converts raw engine output into a Snapshot. The input is untrusted:
// it may carry diagnostic noise before the payload, be truncated, or use one
// of the older output formats. Pure function of its input.
func Extract(raw string) (*Snapshot, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyOutput
	}
	for _, s := range strategies {
		if snap, ok := s.fn(raw); ok {
			snap.Strategy = s.name
			return snap, nil
		}
	}
	// Unreachable: the opaque strategy always claims non-empty input.
	return nil, &ParseFailure{Reason: "no strategy applied"}
}

// The raw text is kept verbatim; emptiness was already ruled out in Extract.
func extractOpaqueText(raw string) (*Snapshot, bool) {
	return &Snapshot{
		Reasoning: raw,
		Degraded:  true,
	}, true
}
