// Package lsp is a minimal Language Server Protocol client for the nil
// Nix language server, spoken over stdio with Content-Length framing.
// One Client serves one tool call: spawn, initialize, query, shutdown.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds each request/response round trip.
const DefaultTimeout = 30 * time.Second

// settleDelay is how long Diagnostics waits for the server to publish
// after didOpen. Diagnostics arrive as unsolicited notifications, so
// there is nothing to block on.
const settleDelay = 600 * time.Millisecond

// Client drives a spawned language server. Not safe for concurrent use
// by multiple goroutines; each tool call creates its own.
type Client struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	timeout time.Duration

	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan *message
	diags   map[string][]Diagnostic

	readDone chan struct{}
}

type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Start spawns the language server and begins reading its responses.
func Start(ctx context.Context, command string) (*Client, error) {
	cmd := exec.CommandContext(ctx, command)
	cmd.Stderr = nil

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("piping stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("piping stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning %s: %w", command, err)
	}

	c := &Client{
		cmd:      cmd,
		stdin:    stdin,
		timeout:  DefaultTimeout,
		pending:  make(map[int64]chan *message),
		diags:    make(map[string][]Diagnostic),
		readDone: make(chan struct{}),
	}
	go c.readLoop(bufio.NewReader(stdout))
	return c, nil
}

// readLoop dispatches responses to waiting requests and collects
// publishDiagnostics notifications. It exits when the server's stdout
// closes.
func (c *Client) readLoop(r *bufio.Reader) {
	defer close(c.readDone)
	for {
		msg, err := readMessage(r)
		if err != nil {
			return
		}
		if msg.ID != nil {
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			delete(c.pending, *msg.ID)
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
			continue
		}
		if msg.Method == "textDocument/publishDiagnostics" {
			var params struct {
				URI         string       `json:"uri"`
				Diagnostics []Diagnostic `json:"diagnostics"`
			}
			if json.Unmarshal(msg.Params, &params) == nil {
				c.mu.Lock()
				c.diags[params.URI] = params.Diagnostics
				c.mu.Unlock()
			}
		}
	}
}

func (c *Client) request(method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan *message, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.send(&id, method, params); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return nil, fmt.Errorf("%s: %s", method, msg.Error.Message)
		}
		return msg.Result, nil
	case <-c.readDone:
		return nil, fmt.Errorf("%s: server closed the connection", method)
	case <-time.After(c.timeout):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: no response within %s", method, c.timeout)
	}
}

func (c *Client) notify(method string, params any) error {
	return c.send(nil, method, params)
}

func (c *Client) send(id *int64, method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", method, err)
	}
	msg := message{JSONRPC: "2.0", ID: id, Method: method, Params: raw}
	return writeMessage(c.stdin, &msg)
}

// Initialize performs the LSP handshake.
func (c *Client) Initialize(rootURI string) error {
	params := map[string]any{
		"processId": os.Getpid(),
		"rootUri":   nilIfEmpty(rootURI),
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"completion": map[string]any{
					"completionItem": map[string]any{
						"documentationFormat": []string{"plaintext", "markdown"},
					},
				},
				"hover": map[string]any{
					"contentFormat": []string{"plaintext", "markdown"},
				},
				"publishDiagnostics": map[string]any{},
			},
		},
	}
	if _, err := c.request("initialize", params); err != nil {
		return err
	}
	return c.notify("initialized", map[string]any{})
}

// DidOpen announces a document to the server.
func (c *Client) DidOpen(uri, text string) error {
	return c.notify("textDocument/didOpen", map[string]any{
		"textDocument": map[string]any{
			"uri":        uri,
			"languageId": "nix",
			"version":    1,
			"text":       text,
		},
	})
}

// Diagnostics returns the diagnostics published for uri, waiting
// briefly for the server to analyse the freshly opened document.
func (c *Client) Diagnostics(uri string) []Diagnostic {
	select {
	case <-c.readDone:
	case <-time.After(settleDelay):
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.diags[uri]
}

// Completion requests completion items at a position.
func (c *Client) Completion(uri string, line, character int) ([]CompletionItem, error) {
	result, err := c.request("textDocument/completion", positionParams(uri, line, character))
	if err != nil {
		return nil, err
	}

	// The server may return CompletionItem[] or a CompletionList.
	var items []CompletionItem
	if json.Unmarshal(result, &items) == nil {
		return items, nil
	}
	var list struct {
		Items []CompletionItem `json:"items"`
	}
	if json.Unmarshal(result, &list) == nil {
		return list.Items, nil
	}
	return nil, nil
}

// Hover requests hover documentation at a position. Returns nil when
// the server has nothing to say.
func (c *Client) Hover(uri string, line, character int) (*Hover, error) {
	result, err := c.request("textDocument/hover", positionParams(uri, line, character))
	if err != nil {
		return nil, err
	}
	if string(result) == "null" || len(result) == 0 {
		return nil, nil
	}

	var raw struct {
		Contents json.RawMessage `json:"contents"`
		Range    *Range          `json:"range"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("decoding hover: %w", err)
	}
	return &Hover{Contents: flattenContents(raw.Contents), Range: raw.Range}, nil
}

// Definition requests the definition locations of the symbol at a
// position.
func (c *Client) Definition(uri string, line, character int) ([]Location, error) {
	result, err := c.request("textDocument/definition", positionParams(uri, line, character))
	if err != nil {
		return nil, err
	}
	if string(result) == "null" || len(result) == 0 {
		return nil, nil
	}

	// Location | Location[]
	var locs []Location
	if json.Unmarshal(result, &locs) == nil {
		return locs, nil
	}
	var loc Location
	if json.Unmarshal(result, &loc) == nil && loc.URI != "" {
		return []Location{loc}, nil
	}
	return nil, nil
}

// Shutdown performs the polite shutdown sequence and reaps the server.
// Safe to call after errors; it never blocks past the client timeout.
func (c *Client) Shutdown() {
	_, _ = c.request("shutdown", nil)
	_ = c.notify("exit", nil)
	_ = c.stdin.Close()

	done := make(chan struct{})
	go func() {
		_ = c.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = c.cmd.Process.Kill()
		<-done
	}
}

func positionParams(uri string, line, character int) map[string]any {
	return map[string]any{
		"textDocument": map[string]any{"uri": uri},
		"position":     map[string]any{"line": line, "character": character},
	}
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
