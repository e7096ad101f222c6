package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
)

// SMBClient is a minimal SMB2 client: negotiate + NTLMv2 session setup +
// tree connect + create/query-directory/read/close, covering exactly the
// surface spec.md §4.2 names. No SMB library exists anywhere in the example
// pack (see DESIGN.md), so this talks SMB2 directly over TCP; it does not
// implement message signing, encryption, multi-credit requests, or SMB3
// dialects, which a production client would need.
type SMBClient struct {
	Host, Share, BasePath string
	Port                  int
	Username, Domain, Password string

	conn      net.Conn
	sessionID uint64
	treeID    uint32
	msgID     uint64
}

func NewSMBClient(host string, port int, share, basePath string, creds Credentials, domain string) *SMBClient {
	if port == 0 {
		port = 445
	}
	return &SMBClient{
		Host: host, Port: port, Share: share, BasePath: basePath,
		Username: creds.Username, Password: creds.Password, Domain: domain,
	}
}

func (c *SMBClient) Connect(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
	if err != nil {
		return apperr.Wrap(apperr.Upstream, "dial smb server", err)
	}
	c.conn = conn

	if err := c.negotiate(); err != nil {
		conn.Close()
		return err
	}
	if err := c.sessionSetup(); err != nil {
		conn.Close()
		return err
	}
	if err := c.treeConnect(); err != nil {
		conn.Close()
		return err
	}
	return nil
}

func (c *SMBClient) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *SMBClient) nextMsgID() uint64 {
	id := c.msgID
	c.msgID++
	return id
}

// smb2Header builds the fixed 64-byte SMB2 packet header.
func smb2Header(command uint16, msgID uint64, sessionID uint64, treeID uint32) []byte {
	h := make([]byte, 64)
	copy(h[0:4], []byte{0xFE, 'S', 'M', 'B'})
	binary.LittleEndian.PutUint16(h[4:], 64) // structure size
	binary.LittleEndian.PutUint16(h[12:], command)
	binary.LittleEndian.PutUint32(h[16:], 0) // status
	binary.LittleEndian.PutUint32(h[24:], 1) // credit request
	binary.LittleEndian.PutUint64(h[32:], msgID)
	binary.LittleEndian.PutUint32(h[40:], treeID)
	binary.LittleEndian.PutUint64(h[48:], sessionID)
	return h
}

const (
	cmdNegotiate      = 0x0000
	cmdSessionSetup   = 0x0001
	cmdTreeConnect    = 0x0003
	cmdCreate         = 0x0005
	cmdClose          = 0x0006
	cmdRead           = 0x0008
	cmdQueryDirectory = 0x000e

	statusMoreProcessingRequired = 0xC0000016 // expected mid NTLM handshake
	statusNoMoreFiles            = 0x80000006
	statusEndOfFile              = 0xC0000011
)

// rawSendRecv writes one SMB2 request and returns the raw response plus its
// status code without treating a non-zero status as an error: callers that
// need to distinguish an expected terminal status (STATUS_NO_MORE_FILES,
// STATUS_END_OF_FILE) from a real failure use this directly; sendRecv wraps
// it for the common case where any non-zero status is fatal.
func (c *SMBClient) rawSendRecv(command uint16, body []byte) ([]byte, uint32, error) {
	header := smb2Header(command, c.nextMsgID(), c.sessionID, c.treeID)
	packet := append(header, body...)

	lenPrefix := make([]byte, 4)
	binary.BigEndian.PutUint32(lenPrefix, uint32(len(packet)))
	if _, err := c.conn.Write(append(lenPrefix, packet...)); err != nil {
		return nil, 0, apperr.Wrap(apperr.Upstream, "smb write", err)
	}

	var sizeBuf [4]byte
	if _, err := io.ReadFull(c.conn, sizeBuf[:]); err != nil {
		return nil, 0, apperr.Wrap(apperr.Upstream, "smb read length prefix", err)
	}
	size := binary.BigEndian.Uint32(sizeBuf[:])
	resp := make([]byte, size)
	if _, err := io.ReadFull(c.conn, resp); err != nil {
		return nil, 0, apperr.Wrap(apperr.Upstream, "smb read response", err)
	}
	if len(resp) < 64 {
		return nil, 0, apperr.New(apperr.Upstream, "smb response shorter than header")
	}
	return resp, binary.LittleEndian.Uint32(resp[8:]), nil
}

func (c *SMBClient) sendRecv(command uint16, body []byte) ([]byte, error) {
	resp, status, err := c.rawSendRecv(command, body)
	if err != nil {
		return nil, err
	}
	if status != 0 && status != statusMoreProcessingRequired {
		return resp, apperr.New(apperr.Upstream, fmt.Sprintf("smb command 0x%x failed: status 0x%08x", command, status))
	}
	return resp, nil
}

func (c *SMBClient) negotiate() error {
	body := make([]byte, 36)
	binary.LittleEndian.PutUint16(body[0:], 36)
	binary.LittleEndian.PutUint16(body[2:], 1) // dialect count
	binary.LittleEndian.PutUint16(body[4:], 1) // security mode: signing enabled
	binary.LittleEndian.PutUint16(body[36-2:], 0x0202)
	_, err := c.sendRecv(cmdNegotiate, body)
	return err
}

func (c *SMBClient) sessionSetup() error {
	neg := negotiateMessage()
	body1 := sessionSetupBody(neg)
	resp, err := c.sendRecv(cmdSessionSetup, body1)
	if err != nil && resp == nil {
		return err
	}
	c.sessionID = binary.LittleEndian.Uint64(resp[48:])

	securityBlobOffset := binary.LittleEndian.Uint16(resp[64+8:])
	securityBlobLen := binary.LittleEndian.Uint16(resp[64+10:])
	if int(securityBlobOffset)+int(securityBlobLen) > len(resp) {
		return apperr.New(apperr.Unauthorized, "smb session setup: malformed challenge blob")
	}
	challengeBlob := resp[securityBlobOffset : securityBlobOffset+securityBlobLen]

	challenge, err := parseChallenge(challengeBlob)
	if err != nil {
		return apperr.Wrap(apperr.Unauthorized, "smb parse ntlm challenge", err)
	}
	auth, _, err := authenticateMessage(c.Username, c.Domain, c.Password, challenge)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "build ntlm authenticate message", err)
	}

	body2 := sessionSetupBody(auth)
	if _, err := c.sendRecv(cmdSessionSetup, body2); err != nil {
		return apperr.ErrAuthFailed
	}
	return nil
}

func sessionSetupBody(securityBlob []byte) []byte {
	const headerLen = 24
	body := make([]byte, headerLen+len(securityBlob))
	binary.LittleEndian.PutUint16(body[0:], 25)
	binary.LittleEndian.PutUint16(body[12:], headerLen)
	binary.LittleEndian.PutUint16(body[14:], uint16(len(securityBlob)))
	copy(body[headerLen:], securityBlob)
	return body
}

func (c *SMBClient) treeConnect() error {
	path := fmt.Sprintf("\\\\%s\\%s", c.Host, c.Share)
	pathUTF16 := utf16le(path)

	const headerLen = 8
	body := make([]byte, headerLen+len(pathUTF16))
	binary.LittleEndian.PutUint16(body[0:], 9)
	binary.LittleEndian.PutUint16(body[4:], headerLen)
	binary.LittleEndian.PutUint16(body[6:], uint16(len(pathUTF16)))
	copy(body[headerLen:], pathUTF16)

	resp, err := c.sendRecv(cmdTreeConnect, body)
	if err != nil {
		return apperr.Wrap(apperr.Upstream, "smb tree connect", err)
	}
	c.treeID = binary.LittleEndian.Uint32(resp[28:])
	return nil
}

func (c *SMBClient) resolve(path string) string {
	full := strings.TrimRight(c.BasePath, "/\\") + "\\" + strings.TrimLeft(strings.ReplaceAll(path, "/", "\\"), "\\")
	return strings.Trim(full, "\\")
}

// smbFileID is the 16-byte persistent+volatile handle CREATE hands back;
// every subsequent QUERY_DIRECTORY/READ/CLOSE on that handle echoes it.
type smbFileID [16]byte

const (
	faDirectory            = 0x00000010 // FILE_ATTRIBUTE_DIRECTORY
	createDispositionOpen  = 0x00000001 // FILE_OPEN: fail if it doesn't exist
	createOptionsDirectory = 0x00000021 // FILE_DIRECTORY_FILE | FILE_SYNCHRONOUS_IO_NONALERT
	desiredAccessRead      = 0x00120089 // FILE_READ_DATA|FILE_READ_ATTRIBUTES|FILE_LIST_DIRECTORY|READ_CONTROL|SYNCHRONIZE

	fileBothDirectoryInfo = 0x03 // FileBothDirectoryInformation
)

// createFile issues CREATE for path and returns the resulting handle plus
// the Entry the CREATE response already describes (size, directory bit),
// so Stat needs no further round trip. directory requests
// FILE_DIRECTORY_FILE, required before QUERY_DIRECTORY will succeed on the
// handle.
func (c *SMBClient) createFile(path string, directory bool) (smbFileID, *Entry, error) {
	name := strings.ReplaceAll(c.resolve(path), "/", "\\")
	nameUTF16 := utf16le(name)

	const fixedLen = 56
	body := make([]byte, fixedLen+len(nameUTF16))
	binary.LittleEndian.PutUint16(body[0:], 57)
	binary.LittleEndian.PutUint32(body[24:], desiredAccessRead)
	binary.LittleEndian.PutUint32(body[32:], 0x00000007) // share access: read|write|delete
	binary.LittleEndian.PutUint32(body[36:], createDispositionOpen)
	if directory {
		binary.LittleEndian.PutUint32(body[40:], createOptionsDirectory)
	}
	binary.LittleEndian.PutUint16(body[44:], uint16(fixedLen))
	binary.LittleEndian.PutUint16(body[46:], uint16(len(nameUTF16)))
	copy(body[fixedLen:], nameUTF16)

	resp, err := c.sendRecv(cmdCreate, body)
	if err != nil {
		return smbFileID{}, nil, apperr.Wrap(apperr.Upstream, "smb CREATE", err)
	}
	respBody := resp[64:]
	if len(respBody) < 80 {
		return smbFileID{}, nil, apperr.New(apperr.Upstream, "smb CREATE response too short")
	}

	var id smbFileID
	copy(id[:], respBody[64:80])
	endOfFile := int64(binary.LittleEndian.Uint64(respBody[48:56]))
	attrs := binary.LittleEndian.Uint32(respBody[56:60])

	baseName := path[strings.LastIndexAny(path, "/\\")+1:]
	entry := &Entry{
		Name:  baseName,
		Path:  path,
		IsDir: attrs&faDirectory != 0,
		Size:  endOfFile,
	}
	return id, entry, nil
}

func (c *SMBClient) closeFile(id smbFileID) error {
	body := make([]byte, 24)
	binary.LittleEndian.PutUint16(body[0:], 24)
	copy(body[8:], id[:])
	_, err := c.sendRecv(cmdClose, body)
	return err
}

// List opens path as a directory and drains QUERY_DIRECTORY, looping until
// the server reports STATUS_NO_MORE_FILES, the documented end-of-listing
// signal for this request (MS-SMB2 3.3.5.18).
func (c *SMBClient) List(ctx context.Context, path string) ([]Entry, error) {
	if c.conn == nil {
		return nil, apperr.ErrNotConnected
	}
	id, _, err := c.createFile(path, true)
	if err != nil {
		return nil, err
	}
	defer c.closeFile(id)

	var entries []Entry
	restart := true
	for {
		pattern := utf16le("*")
		const fixedLen = 32
		body := make([]byte, fixedLen+len(pattern))
		binary.LittleEndian.PutUint16(body[0:], 33)
		body[2] = fileBothDirectoryInfo
		if restart {
			body[3] = 0x01 // SMB2_RESTART_SCANS
		}
		restart = false
		copy(body[8:], id[:])
		binary.LittleEndian.PutUint16(body[24:], uint16(fixedLen))
		binary.LittleEndian.PutUint16(body[26:], uint16(len(pattern)))
		binary.LittleEndian.PutUint32(body[28:], 65536) // output buffer length
		copy(body[fixedLen:], pattern)

		resp, status, err := c.rawSendRecv(cmdQueryDirectory, body)
		if err != nil {
			return nil, apperr.Wrap(apperr.Upstream, "smb QUERY_DIRECTORY", err)
		}
		if status == statusNoMoreFiles {
			break
		}
		if status != 0 {
			return nil, apperr.New(apperr.Upstream, fmt.Sprintf("smb QUERY_DIRECTORY failed: status 0x%08x", status))
		}

		respBody := resp[64:]
		if len(respBody) < 8 {
			return nil, apperr.New(apperr.Upstream, "smb QUERY_DIRECTORY response too short")
		}
		outOffset := binary.LittleEndian.Uint16(respBody[2:4])
		outLen := binary.LittleEndian.Uint32(respBody[4:8])
		if int(outOffset)+int(outLen) > len(resp) {
			return nil, apperr.New(apperr.Upstream, "smb QUERY_DIRECTORY response truncated")
		}
		entries = append(entries, parseDirInfoBuffer(resp[int(outOffset):int(outOffset)+int(outLen)], path)...)
	}
	return entries, nil
}

// parseDirInfoBuffer walks a FILE_BOTH_DIR_INFORMATION array (MS-FSCC
// 2.4.8), chained by each entry's NextEntryOffset, zero on the last entry.
func parseDirInfoBuffer(buf []byte, dirPath string) []Entry {
	var entries []Entry
	for len(buf) >= 94 {
		nextOffset := binary.LittleEndian.Uint32(buf[0:4])
		endOfFile := int64(binary.LittleEndian.Uint64(buf[40:48]))
		attrs := binary.LittleEndian.Uint32(buf[56:60])
		nameLen := binary.LittleEndian.Uint32(buf[60:64])
		if 94+int(nameLen) > len(buf) {
			break
		}
		name := utf16leToString(buf[94 : 94+int(nameLen)])
		if name != "." && name != ".." {
			entries = append(entries, Entry{
				Name:  name,
				Path:  strings.TrimRight(dirPath, "/") + "/" + name,
				IsDir: attrs&faDirectory != 0,
				Size:  endOfFile,
			})
		}
		if nextOffset == 0 {
			break
		}
		buf = buf[nextOffset:]
	}
	return entries
}

func utf16leToString(b []byte) string {
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return string(utf16.Decode(u))
}

// Stat opens and immediately closes path; CREATE's response already
// reports size and the directory attribute bit, so no further request is
// needed.
func (c *SMBClient) Stat(ctx context.Context, path string) (*Entry, error) {
	if c.conn == nil {
		return nil, apperr.ErrNotConnected
	}
	id, entry, err := c.createFile(path, false)
	if err != nil {
		return nil, err
	}
	c.closeFile(id)
	return entry, nil
}

const smbReadChunk = 1 << 16 // bytes requested per READ; no multi-credit large reads

// OpenRange opens path with CREATE and returns a reader that pulls
// successive READ requests over the handle, the SMB2 analogue of the FTP
// client's REST+RETR range read.
func (c *SMBClient) OpenRange(ctx context.Context, path string, start, end int64) (io.ReadCloser, error) {
	if c.conn == nil {
		return nil, apperr.ErrNotConnected
	}
	id, entry, err := c.createFile(path, false)
	if err != nil {
		return nil, err
	}

	remaining := entry.Size - start
	if end > 0 {
		remaining = end - start + 1
	}
	if remaining < 0 {
		remaining = 0
	}
	return &smbRangeReader{client: c, id: id, offset: uint64(start), remaining: remaining}, nil
}

type smbRangeReader struct {
	client    *SMBClient
	id        smbFileID
	offset    uint64
	remaining int64
	buf       []byte
}

func (r *smbRangeReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if r.remaining <= 0 {
			return 0, io.EOF
		}
		want := uint32(smbReadChunk)
		if r.remaining < int64(want) {
			want = uint32(r.remaining)
		}
		chunk, err := r.client.readChunk(r.id, r.offset, want)
		if err != nil {
			return 0, err
		}
		if len(chunk) == 0 {
			return 0, io.EOF
		}
		r.buf = chunk
		r.offset += uint64(len(chunk))
		r.remaining -= int64(len(chunk))
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *smbRangeReader) Close() error {
	return r.client.closeFile(r.id)
}

// readChunk issues one READ request for up to length bytes at offset.
func (c *SMBClient) readChunk(id smbFileID, offset uint64, length uint32) ([]byte, error) {
	body := make([]byte, 49)
	binary.LittleEndian.PutUint16(body[0:], 49)
	binary.LittleEndian.PutUint32(body[4:], length)
	binary.LittleEndian.PutUint64(body[8:], offset)
	copy(body[16:], id[:])

	resp, status, err := c.rawSendRecv(cmdRead, body)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "smb READ", err)
	}
	if status == statusEndOfFile {
		return nil, nil
	}
	if status != 0 {
		return nil, apperr.New(apperr.Upstream, fmt.Sprintf("smb READ failed: status 0x%08x", status))
	}

	respBody := resp[64:]
	if len(respBody) < 8 {
		return nil, apperr.New(apperr.Upstream, "smb READ response too short")
	}
	dataOffset := int(respBody[2]) // counted from the start of the SMB2 header
	dataLen := int(binary.LittleEndian.Uint32(respBody[4:8]))
	start := dataOffset - 64
	if start < 0 || start+dataLen > len(respBody) {
		return nil, apperr.New(apperr.Upstream, "smb READ response data out of range")
	}
	return respBody[start : start+dataLen], nil
}

func (c *SMBClient) TestConnection(ctx context.Context) (bool, string) {
	if err := c.Connect(ctx); err != nil {
		return false, err.Error()
	}
	defer c.Disconnect()
	return true, "ok"
}
