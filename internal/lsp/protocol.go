package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Position is a zero-based line/character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [start, end) span.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is one finding published by the server.
type Diagnostic struct {
	Range    Range  `json:"range"`
	Severity int    `json:"severity,omitempty"`
	Message  string `json:"message"`
	Source   string `json:"source,omitempty"`
}

// SeverityString renders an LSP severity number for display.
func (d Diagnostic) SeverityString() string {
	switch d.Severity {
	case 1:
		return "error"
	case 2:
		return "warning"
	case 3:
		return "information"
	case 4:
		return "hint"
	}
	return "unknown"
}

// CompletionItem is one completion candidate.
type CompletionItem struct {
	Label         string          `json:"label"`
	Kind          int             `json:"kind,omitempty"`
	Detail        string          `json:"detail,omitempty"`
	Documentation json.RawMessage `json:"documentation,omitempty"`
}

// DocText extracts plain documentation text, which the protocol allows
// as either a string or a MarkupContent object.
func (c CompletionItem) DocText() string {
	return flattenContents(c.Documentation)
}

var completionKinds = map[int]string{
	1: "text", 2: "method", 3: "function", 4: "constructor",
	5: "field", 6: "variable", 7: "class", 8: "interface",
	9: "module", 10: "property", 11: "unit", 12: "value",
	13: "enum", 14: "keyword", 15: "snippet", 16: "color",
	17: "file", 18: "reference", 19: "folder", 20: "enum_member",
	21: "constant", 22: "struct", 23: "event", 24: "operator",
	25: "type_parameter",
}

// KindString renders an LSP completion kind number for display.
func (c CompletionItem) KindString() string {
	if s, ok := completionKinds[c.Kind]; ok {
		return s
	}
	return "unknown"
}

// Hover is documentation for a position.
type Hover struct {
	Contents string `json:"contents"`
	Range    *Range `json:"range,omitempty"`
}

// Location points into a document.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// FileURI converts a filesystem path to a file:// URI, passing
// through paths that already are one.
func FileURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}

// flattenContents reduces the protocol's MarkedString | MarkedString[]
// | MarkupContent union to plain text.
func flattenContents(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var markup struct {
		Value string `json:"value"`
	}
	if json.Unmarshal(raw, &markup) == nil && markup.Value != "" {
		return markup.Value
	}
	var parts []json.RawMessage
	if json.Unmarshal(raw, &parts) == nil {
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := flattenContents(p); t != "" {
				texts = append(texts, t)
			}
		}
		return strings.Join(texts, "\n")
	}
	return string(raw)
}

// writeMessage frames a JSON-RPC message with a Content-Length header.
func writeMessage(w io.Writer, msg *message) error {
	content, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(content)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	return nil
}

// readMessage reads one Content-Length framed JSON-RPC message.
func readMessage(r *bufio.Reader) (*message, error) {
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			contentLength, err = strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length %q: %w", v, err)
			}
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	content := make([]byte, contentLength)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	var msg message
	if err := json.Unmarshal(content, &msg); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	return &msg, nil
}
