// Package logstore persists build logs so that large nix output can be
// returned by reference (a log ID) instead of inline, and fetched later
// through the log resources.
package logstore

import "time"

// Record is one archived build log.
type Record struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	CreatedAt time.Time `json:"created_at"`
	Log       string    `json:"log"`
}

// Summary is a Record without its log body, for listings.
type Summary struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	CreatedAt time.Time `json:"created_at"`
	Bytes     int       `json:"bytes"`
}

// Store persists and retrieves build logs.
type Store interface {
	Save(rec *Record) error
	Load(id string) (*Record, error)
	List() []Summary
}
