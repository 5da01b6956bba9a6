// Package storage defines the vault file-store abstraction the index reads from.
package storage

import "time"

// DocumentMeta describes one vault file without its content.
type DocumentMeta struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Provider is the read-only interface to the vault. The file store is the
// sole source of truth for document existence; the index never writes to it.
type Provider interface {
	// List returns metadata for every eligible file under dir (relative to
	// the vault root). An empty dir lists the whole vault.
	List(dir string) ([]DocumentMeta, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
}
