package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
)

const ssdpAddr = "239.255.255.250:1900"

// Device is a discovered UPnP media server, parsed from its device
// description XML.
type Device struct {
	USN         string
	Location    string
	FriendlyName string
	BaseURL     string
}

type deviceDescription struct {
	XMLName xml.Name `xml:"root"`
	Device  struct {
		FriendlyName string `xml:"friendlyName"`
	} `xml:"device"`
}

// Discover sends an SSDP M-SEARCH and aggregates responses by USN for
// timeout, inverting the teacher's internal/dlna/ssdp.go advertise role
// (NOTIFY/M-SEARCH response) into the client/discover role spec.md §4.2
// requires of the UPnP variant.
func Discover(ctx context.Context, timeout time.Duration) ([]Device, error) {
	addr, err := net.ResolveUDPAddr("udp4", ssdpAddr)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "resolve ssdp address", err)
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "open discovery socket", err)
	}
	defer conn.Close()

	search := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 2\r\n" +
		"ST: urn:schemas-upnp-org:device:MediaServer:1\r\n\r\n"
	if _, err := conn.WriteTo([]byte(search), addr); err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "send m-search", err)
	}

	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)

	seen := make(map[string]Device)
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			break
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		resp := string(buf[:n])
		usn := extractHeader(resp, "USN")
		location := extractHeader(resp, "LOCATION")
		if usn == "" || location == "" {
			continue
		}
		if _, ok := seen[usn]; ok {
			continue
		}
		seen[usn] = Device{USN: usn, Location: location}
	}

	devices := make([]Device, 0, len(seen))
	for _, d := range seen {
		if desc, err := fetchDescription(d.Location); err == nil {
			d.FriendlyName = desc.Device.FriendlyName
		}
		d.BaseURL = baseURL(d.Location)
		devices = append(devices, d)
	}
	return devices, nil
}

func fetchDescription(location string) (*deviceDescription, error) {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(location)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var desc deviceDescription
	if err := xml.Unmarshal(body, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func baseURL(location string) string {
	if idx := strings.Index(location[len("http://"):], "/"); idx >= 0 {
		return location[:len("http://")+idx]
	}
	return location
}

func extractHeader(msg, header string) string {
	for _, line := range strings.Split(msg, "\r\n") {
		if len(line) > len(header) && strings.EqualFold(line[:len(header)], header) {
			rest := line[len(header):]
			return strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		}
	}
	return ""
}

// UPnPClient wraps a single discovered MediaServer device. It is
// discovery-only: OpenRange returns apperr.ErrUnsupported, List always
// returns an error (ContentDirectory browsing is not implemented), and Stat
// issues an HTTP HEAD against the path taken as a URL.
type UPnPClient struct {
	Device Device
	http   *http.Client
}

func NewUPnPClient(d Device) *UPnPClient {
	return &UPnPClient{Device: d, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *UPnPClient) Connect(ctx context.Context) error {
	_, ok := ctx.Deadline()
	_ = ok
	resp, err := c.http.Get(c.Device.Location)
	if err != nil {
		return apperr.Wrap(apperr.Upstream, "connect to upnp device", err)
	}
	defer resp.Body.Close()
	return nil
}

func (c *UPnPClient) Disconnect() error { return nil }

func (c *UPnPClient) List(ctx context.Context, path string) ([]Entry, error) {
	// A full ContentDirectory Browse() SOAP call is out of scope for this
	// client; directory browsing for UPnP sources is keyed by object id
	// rather than path, so a UPnP source cannot be walked by the Indexer.
	return nil, apperr.New(apperr.Upstream, "upnp browse requires a ContentDirectory object id, not a path")
}

func (c *UPnPClient) Stat(ctx context.Context, path string) (*Entry, error) {
	resp, err := c.http.Head(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "stat upnp resource", err)
	}
	defer resp.Body.Close()
	return &Entry{Name: path, Path: path, Size: resp.ContentLength}, nil
}

func (c *UPnPClient) OpenRange(ctx context.Context, path string, start, end int64) (io.ReadCloser, error) {
	return nil, apperr.ErrUnsupported
}

func (c *UPnPClient) TestConnection(ctx context.Context) (bool, string) {
	if err := c.Connect(ctx); err != nil {
		return false, err.Error()
	}
	return true, fmt.Sprintf("connected to %s", c.Device.FriendlyName)
}
