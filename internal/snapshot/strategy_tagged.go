package snapshot

import (
	"strings"

	"github.com/tidwall/gjson"
)

const (
	thinkingOpen  = "<thinking>"
	thinkingClose = "</thinking>"
)

// extractTaggedBlock handles the older engine format: reasoning inside a
// <thinking> tag pair, followed by a pipe-separated decisions table, a
// "portfolio status" section of colon-separated lines, and an embedded
// single-line JSON array with the value history. The strategy applies only
// when the full tag pair is present; a lone open tag is treated as noise and
// left for the opaque fallback.
func extractTaggedBlock(raw string) (*Snapshot, bool) {
	start := strings.Index(raw, thinkingOpen)
	if start == -1 {
		return nil, false
	}
	rest := raw[start+len(thinkingOpen):]
	end := strings.Index(rest, thinkingClose)
	if end == -1 {
		return nil, false
	}
	remainder := rest[end+len(thinkingClose):]
	snap := &Snapshot{
		Reasoning:        strings.TrimSpace(rest[:end]),
		Decisions:        parsePipeTable(remainder),
		PortfolioSummary: parseStatusSection(remainder),
		History:          parseInlineHistory(remainder),
	}
	return snap, true
}

// parsePipeTable reads `| SYMBOL | ACTION | CONFIDENCE | QUANTITY |` rows,
// skipping the header row and dash separators.
func parsePipeTable(text string) []Decision {
	var out []Decision
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			continue
		}
		cells := splitPipeRow(line)
		if len(cells) < 4 || isSeparatorRow(cells) {
			continue
		}
		if strings.EqualFold(cells[0], "symbol") {
			continue
		}
		out = append(out, Decision{
			Symbol:     cells[0],
			Action:     cells[1],
			Confidence: cells[2],
			Quantity:   stripQuantityLabel(cells[3]),
		})
	}
	return out
}

func splitPipeRow(line string) []string {
	parts := strings.Split(line, "|")
	// Leading and trailing pipes produce empty edge cells.
	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-") != "" {
			return false
		}
	}
	return true
}

func stripQuantityLabel(cell string) string {
	if idx := strings.Index(cell, ":"); idx != -1 {
		prefix := strings.ToUpper(strings.TrimSpace(cell[:idx]))
		if prefix == "QUANTITY" {
			return strings.TrimSpace(cell[idx+1:])
		}
	}
	return cell
}

// parseStatusSection collects `key: value` lines following a line that
// mentions "portfolio status". Collection stops at the first blank line once
// any pair has been read.
func parseStatusSection(text string) map[string]string {
	var out map[string]string
	collecting := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !collecting {
			if strings.Contains(strings.ToLower(trimmed), "portfolio status") {
				collecting = true
			}
			continue
		}
		if trimmed == "" {
			if len(out) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(trimmed, "|") || strings.HasPrefix(trimmed, "[") {
			continue
		}
		idx := strings.Index(trimmed, ":")
		if idx <= 0 {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[strings.TrimSpace(trimmed[:idx])] = strings.TrimSpace(trimmed[idx+1:])
	}
	return out
}

// parseInlineHistory scans the remainder for a balanced JSON array that
// decodes into history points. Arrays that balance but carry no points (for
// example a positions dump) are skipped.
func parseInlineHistory(text string) []HistoryPoint {
	offset := 0
	for {
		arr, next, ok := extractJSONArray(text[offset:])
		if !ok {
			return nil
		}
		if gjson.Valid(arr) {
			if points := decodeHistory(gjson.Parse(arr)); len(points) > 0 {
				return points
			}
		}
		offset += next + 1
		if offset >= len(text) {
			return nil
		}
	}
}
