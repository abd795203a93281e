// Package limit caps unbounded text and list output to fixed budgets,
// recording truncation provenance. All functions are pure: identical
// input and budget always yield identical output.
package limit

import (
	"strings"
	"unicode/utf8"
)

// DefaultStderrBytes is the fixed byte budget applied to subprocess
// diagnostic streams. Stderr is never caller-controllable, so it gets
// automatic truncation rather than a per-call parameter.
const DefaultStderrBytes = 100_000

// Limits selects which portion of a text stream to keep. Head and Tail
// are mutually exclusive; Head wins when both are set.
type Limits struct {
	Head     int // keep only the first N lines
	Tail     int // keep only the last N lines
	MaxBytes int // cap content to N bytes
	MaxLines int // cap content to N lines (after head/tail)
}

// Info describes a truncation that occurred.
type Info struct {
	OriginalBytes int    `json:"original_bytes"`
	OriginalLines int    `json:"original_lines,omitempty"`
	KeptBytes     int    `json:"kept_bytes"`
	KeptLines     int    `json:"kept_lines,omitempty"`
	Position      string `json:"position,omitempty"` // head or tail
}

// Limited is a possibly-truncated text blob. Info is non-nil iff
// Truncated is true, and OriginalBytes always reflects the
// pre-truncation size.
type Limited struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
	Info      *Info  `json:"truncation_info,omitempty"`
}

// Stderr caps a diagnostic stream to the default budget.
func Stderr(s string) Limited {
	return Text(s, Limits{MaxBytes: DefaultStderrBytes})
}

// Text applies limits to a text blob. Head/tail selection runs first,
// then the line cap, then the byte cap. Byte truncation prefers a line
// boundary and never splits a multi-byte character, so Content always
// decodes as valid UTF-8.
func Text(s string, l Limits) Limited {
	originalBytes := len(s)
	lines := splitLines(s)
	originalLines := len(lines)

	content := s
	position := ""

	// Line-level selection. Content is only rejoined when a selection
	// actually drops lines, so an untouched input passes through
	// byte-identical (trailing newline included).
	kept := lines
	lineTruncated := false
	if l.Head > 0 && l.Head < len(kept) {
		kept = kept[:l.Head]
		position = "head"
		lineTruncated = true
	} else if l.Tail > 0 && l.Tail < len(kept) {
		kept = kept[len(kept)-l.Tail:]
		position = "tail"
		lineTruncated = true
	}
	if l.MaxLines > 0 && l.MaxLines < len(kept) {
		kept = kept[:l.MaxLines]
		if position == "" {
			position = "head"
		}
		lineTruncated = true
	}
	if lineTruncated {
		content = strings.Join(kept, "\n")
	}

	if l.MaxBytes > 0 && len(content) > l.MaxBytes {
		content = truncateBytes(content, l.MaxBytes)
		if position == "" {
			position = "head"
		}
	}

	truncated := len(content) < originalBytes

	var info *Info
	if truncated {
		info = &Info{
			OriginalBytes: originalBytes,
			OriginalLines: originalLines,
			KeptBytes:     len(content),
			KeptLines:     len(splitLines(content)),
			Position:      position,
		}
	}

	return Limited{Content: content, Truncated: truncated, Info: info}
}

// truncateBytes returns the longest valid-UTF-8 prefix of s not exceeding
// max bytes, preferring to cut at the last newline within the budget.
func truncateBytes(s string, max int) string {
	cut := s[:max]
	if i := strings.LastIndexByte(cut, '\n'); i >= 0 {
		return cut[:i]
	}
	// No newline within budget — back off to a rune boundary.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// splitLines splits like strings.Split but treats the empty string as
// zero lines and ignores a trailing newline, matching line-count
// semantics of the tools whose output it bounds.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// PageInfo is pagination metadata for list results.
type PageInfo struct {
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// Page slices items[offset : offset+limit], clamping out-of-range bounds.
// limit <= 0 means no limit.
func Page[T any](items []T, offset, limit int) ([]T, PageInfo) {
	total := len(items)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	if limit <= 0 {
		limit = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	kept := items[offset:end]
	return kept, PageInfo{
		Offset:  offset,
		Limit:   limit,
		Total:   total,
		HasMore: end < total,
	}
}
