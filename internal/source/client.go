// Package source implements the ProtocolClient family spec.md §4.2 names:
// Local, FTP, SMB, and UPnP variants sharing a common connect/list/stat/
// open_range/test_connection surface, plus a connection pool keyed by
// (protocol, source id) and at-rest credential encryption.
package source

import (
	"context"
	"io"
	"time"
)

// Entry is one directory listing result.
type Entry struct {
	Name  string
	Path  string
	IsDir bool
	Size  int64
	MTime time.Time
}

// ProtocolClient is the common surface every source variant implements, per
// spec.md §4.2. UPnP additionally exposes Discover and does not implement
// OpenRange (enforced by returning apperr.ErrUnsupported).
type ProtocolClient interface {
	Connect(ctx context.Context) error
	Disconnect() error
	List(ctx context.Context, path string) ([]Entry, error)
	Stat(ctx context.Context, path string) (*Entry, error)
	OpenRange(ctx context.Context, path string, start, end int64) (io.ReadCloser, error)
	TestConnection(ctx context.Context) (bool, string)
}

// Credentials carries the decrypted username/password pair a client needs
// to authenticate, resolved from Source.EncryptedCredential before use.
type Credentials struct {
	Username string
	Password string
}
