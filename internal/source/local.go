package source

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
)

// LocalClient serves a directory tree already mounted on the host
// filesystem. Connect/Disconnect/TestConnection are no-ops beyond an
// existence check since there is no remote session to hold open.
type LocalClient struct {
	Root string
}

func NewLocalClient(root string) *LocalClient { return &LocalClient{Root: root} }

func (c *LocalClient) Connect(ctx context.Context) error {
	info, err := os.Stat(c.Root)
	if err != nil {
		return apperr.Wrap(apperr.Upstream, "local source root unreachable", err)
	}
	if !info.IsDir() {
		return apperr.New(apperr.Upstream, "local source root is not a directory")
	}
	return nil
}

func (c *LocalClient) Disconnect() error { return nil }

func (c *LocalClient) resolve(path string) string {
	return ResolveLocalPath(c.Root, path)
}

// ResolveLocalPath joins a source-relative path onto a filesystem root the
// same way LocalClient does, so callers that need a real OS path for a
// Local-sourced MediaItem (the Transcoder, which execs ffmpeg directly
// against a path rather than going through ProtocolClient) don't duplicate
// the join-and-clean convention.
func ResolveLocalPath(root, path string) string {
	return filepath.Join(root, filepath.Clean("/"+path))
}

func (c *LocalClient) List(ctx context.Context, path string) ([]Entry, error) {
	full := c.resolve(path)
	dirEntries, err := os.ReadDir(full)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "list local directory", err)
	}
	out := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Name:  de.Name(),
			Path:  filepath.Join(path, de.Name()),
			IsDir: de.IsDir(),
			Size:  info.Size(),
			MTime: info.ModTime(),
		})
	}
	return out, nil
}

func (c *LocalClient) Stat(ctx context.Context, path string) (*Entry, error) {
	full := c.resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.NotFound, "path not found")
		}
		return nil, apperr.Wrap(apperr.Upstream, "stat local path", err)
	}
	return &Entry{Name: info.Name(), Path: path, IsDir: info.IsDir(), Size: info.Size(), MTime: info.ModTime()}, nil
}

func (c *LocalClient) OpenRange(ctx context.Context, path string, start, end int64) (io.ReadCloser, error) {
	full := c.resolve(path)
	f, err := os.Open(full)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "open local file", err)
	}
	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			f.Close()
			return nil, apperr.Wrap(apperr.Upstream, "seek local file", err)
		}
	}
	if end <= 0 {
		return f, nil
	}
	return &limitedReadCloser{f: f, remaining: end - start + 1}, nil
}

func (c *LocalClient) TestConnection(ctx context.Context) (bool, string) {
	if err := c.Connect(ctx); err != nil {
		return false, err.Error()
	}
	return true, "ok"
}

type limitedReadCloser struct {
	f         *os.File
	remaining int64
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.f.Read(p)
	l.remaining -= int64(n)
	return n, err
}

func (l *limitedReadCloser) Close() error { return l.f.Close() }
