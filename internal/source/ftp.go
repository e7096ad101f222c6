package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
)

// FTPClient is a minimal passive-mode (PASV) FTP client built on
// net/textproto, since no example repo in the pack carries an FTP library —
// see DESIGN.md for the stdlib justification. It supports exactly the
// surface spec.md §4.2 names: list, stat (via SIZE), and ranged reads
// (via REST before RETR). Active-mode data connections are not supported.
type FTPClient struct {
	Host, Port string
	Username   string
	Password   string
	BasePath   string

	conn *textproto.Conn
	raw  net.Conn
}

func NewFTPClient(host string, port int, creds Credentials, basePath string) *FTPClient {
	if port == 0 {
		port = 21
	}
	return &FTPClient{
		Host: host, Port: strconv.Itoa(port),
		Username: creds.Username, Password: creds.Password,
		BasePath: basePath,
	}
}

func (c *FTPClient) Connect(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	raw, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(c.Host, c.Port))
	if err != nil {
		return apperr.Wrap(apperr.Upstream, "dial ftp server", err)
	}
	conn := textproto.NewConn(raw)
	if _, _, err := conn.ReadResponse(2); err != nil {
		raw.Close()
		return apperr.Wrap(apperr.Upstream, "read ftp banner", err)
	}

	if err := cmdExpect(conn, 3, "USER %s", c.Username); err != nil {
		raw.Close()
		return apperr.Wrap(apperr.Unauthorized, "ftp USER rejected", err)
	}
	if err := cmdExpect(conn, 2, "PASS %s", c.Password); err != nil {
		raw.Close()
		return apperr.ErrAuthFailed
	}
	if err := cmdExpect(conn, 2, "TYPE I"); err != nil {
		raw.Close()
		return apperr.Wrap(apperr.Upstream, "ftp TYPE I rejected", err)
	}

	c.conn, c.raw = conn, raw
	return nil
}

func (c *FTPClient) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	c.conn.Cmd("QUIT")
	return c.raw.Close()
}

func (c *FTPClient) resolve(path string) string {
	full := strings.TrimRight(c.BasePath, "/") + "/" + strings.TrimLeft(path, "/")
	return full
}

// List issues PASV + LIST and parses Unix-style listing lines. Parsing is
// intentionally narrow: it handles the common `ls -l`-style format most FTP
// servers emit and skips lines it cannot parse.
func (c *FTPClient) List(ctx context.Context, path string) ([]Entry, error) {
	if c.conn == nil {
		return nil, apperr.ErrNotConnected
	}
	dataConn, err := c.passive()
	if err != nil {
		return nil, err
	}
	defer dataConn.Close()

	id, err := c.conn.Cmd("LIST %s", c.resolve(path))
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "ftp LIST", err)
	}
	c.conn.StartResponse(id)
	_, _, err = c.conn.ReadResponse(1)
	c.conn.EndResponse(id)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "ftp LIST not accepted", err)
	}

	var entries []Entry
	scanner := bufio.NewScanner(dataConn)
	for scanner.Scan() {
		if e, ok := parseUnixListLine(scanner.Text(), path); ok {
			entries = append(entries, e)
		}
	}

	id, err = c.conn.Cmd("")
	_ = id
	_, _, _ = c.conn.ReadResponse(2)
	return entries, nil
}

func parseUnixListLine(line, dirPath string) (Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return Entry{}, false
	}
	name := strings.Join(fields[8:], " ")
	isDir := strings.HasPrefix(fields[0], "d")
	size, _ := strconv.ParseInt(fields[4], 10, 64)
	return Entry{Name: name, Path: strings.TrimRight(dirPath, "/") + "/" + name, IsDir: isDir, Size: size}, true
}

func (c *FTPClient) Stat(ctx context.Context, path string) (*Entry, error) {
	if c.conn == nil {
		return nil, apperr.ErrNotConnected
	}
	full := c.resolve(path)
	size, err := c.sizeOf(full)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, "ftp SIZE failed", err)
	}
	return &Entry{Name: path, Path: path, Size: size}, nil
}

func (c *FTPClient) sizeOf(full string) (int64, error) {
	id, err := c.conn.Cmd("SIZE %s", full)
	if err != nil {
		return 0, err
	}
	c.conn.StartResponse(id)
	defer c.conn.EndResponse(id)
	_, msg, err := c.conn.ReadResponse(2)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(msg), 10, 64)
}

// OpenRange issues REST <start> before RETR so the server skips to the
// requested byte offset; end is enforced client-side via io.LimitReader.
func (c *FTPClient) OpenRange(ctx context.Context, path string, start, end int64) (io.ReadCloser, error) {
	if c.conn == nil {
		return nil, apperr.ErrNotConnected
	}
	dataConn, err := c.passive()
	if err != nil {
		return nil, err
	}

	if start > 0 {
		if err := cmdExpect(c.conn, 3, "REST %d", start); err != nil {
			dataConn.Close()
			return nil, apperr.Wrap(apperr.Upstream, "ftp REST rejected", err)
		}
	}

	id, err := c.conn.Cmd("RETR %s", c.resolve(path))
	if err != nil {
		dataConn.Close()
		return nil, apperr.Wrap(apperr.Upstream, "ftp RETR", err)
	}
	c.conn.StartResponse(id)
	_, _, err = c.conn.ReadResponse(1)
	c.conn.EndResponse(id)
	if err != nil {
		dataConn.Close()
		return nil, apperr.Wrap(apperr.NotFound, "ftp RETR not accepted", err)
	}

	var r io.Reader = dataConn
	if end > 0 {
		r = io.LimitReader(dataConn, end-start+1)
	}
	return &ftpRangeReader{Reader: r, dataConn: dataConn, ctrl: c.conn}, nil
}

type ftpRangeReader struct {
	io.Reader
	dataConn net.Conn
	ctrl     *textproto.Conn
}

func (f *ftpRangeReader) Close() error {
	err := f.dataConn.Close()
	f.ctrl.ReadResponse(2)
	return err
}

func (c *FTPClient) TestConnection(ctx context.Context) (bool, string) {
	if err := c.Connect(ctx); err != nil {
		return false, err.Error()
	}
	defer c.Disconnect()
	return true, "ok"
}

// passive issues PASV and dials the data connection it returns.
func (c *FTPClient) passive() (net.Conn, error) {
	id, err := c.conn.Cmd("PASV")
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "ftp PASV", err)
	}
	c.conn.StartResponse(id)
	_, msg, err := c.conn.ReadResponse(2)
	c.conn.EndResponse(id)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "ftp PASV rejected", err)
	}

	host, port, err := parsePASV(msg)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "parse PASV response", err)
	}
	dataConn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 10*time.Second)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "dial ftp data connection", err)
	}
	return dataConn, nil
}

// parsePASV extracts the (h1,h2,h3,h4,p1,p2) sextet from a "227 Entering
// Passive Mode (h1,h2,h3,h4,p1,p2)" response.
func parsePASV(msg string) (string, int, error) {
	start := strings.Index(msg, "(")
	end := strings.Index(msg, ")")
	if start < 0 || end < 0 || end <= start {
		return "", 0, fmt.Errorf("no parenthesized address in %q", msg)
	}
	parts := strings.Split(msg[start+1:end], ",")
	if len(parts) != 6 {
		return "", 0, fmt.Errorf("unexpected PASV field count in %q", msg)
	}
	host := strings.Join(parts[:4], ".")
	p1, _ := strconv.Atoi(parts[4])
	p2, _ := strconv.Atoi(parts[5])
	return host, p1*256 + p2, nil
}

func cmdExpect(conn *textproto.Conn, code int, format string, args ...interface{}) error {
	id, err := conn.Cmd(format, args...)
	if err != nil {
		return err
	}
	conn.StartResponse(id)
	defer conn.EndResponse(id)
	_, _, err = conn.ReadResponse(code)
	return err
}
