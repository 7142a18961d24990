package shoutcast

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetadataCallbackFunc is the type of the function called when the stream metadata changes
type MetadataCallbackFunc func(m *Metadata)

// Stream represents an open shoutcast stream.
type Stream struct {
	// The name of the server
	Name string

	// What category the server falls under
	Genre string

	// The description of the stream
	Description string

	// Homepage of the server
	URL string

	// Bitrate of the server
	Bitrate int

	// Content type reported by the server
	ContentType string

	// Optional function to be executed when stream metadata changes
	MetadataCallbackFunc MetadataCallbackFunc

	// Amount of bytes to read before expecting a metadata block, zero when
	// the server does not interleave metadata
	metaint int

	// Stream metadata
	metadata *Metadata

	// The number of audio bytes read since last metadata block
	pos int

	r  *bufio.Reader
	rc io.ReadCloser
}

// NewClient returns the HTTP client used for streams. Establishing the
// connection is bounded, reading the body is not.
func NewClient() *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: 10 * time.Second,
		DisableCompression:    true,
	}
	return &http.Client{Transport: transport}
}

// Open establishes a connection to a remote server. The headers are sent
// as-is and Icy-MetaData is always requested. A nil client uses NewClient.
func Open(ctx context.Context, client *http.Client, url string, header http.Header) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Icy-MetaData", "1")

	if client == nil {
		client = NewClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	s, err := NewStream(resp.Header, resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return s, nil
}

// NewStream wraps an already opened body, reading the icy-* values from header.
func NewStream(header http.Header, body io.ReadCloser) (*Stream, error) {
	var (
		bitrate int
		metaint int
		err     error
	)
	if raw := strings.TrimSpace(header.Get("icy-br")); raw != "" {
		// some servers send "128,128"
		raw, _, _ = strings.Cut(raw, ",")
		bitrate, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("cannot parse bitrate: %v", err)
		}
	}
	if raw := strings.TrimSpace(header.Get("icy-metaint")); raw != "" {
		metaint, err = strconv.Atoi(raw)
		if err != nil || metaint < 0 {
			return nil, fmt.Errorf("cannot parse metaint %q", raw)
		}
	}

	return &Stream{
		Name:        header.Get("icy-name"),
		Genre:       header.Get("icy-genre"),
		Description: header.Get("icy-description"),
		URL:         header.Get("icy-url"),
		ContentType: header.Get("Content-Type"),
		Bitrate:     bitrate,
		metaint:     metaint,
		r:           bufio.NewReader(body),
		rc:          body,
	}, nil
}

// MetaInt returns the interleave period announced by the server.
func (s *Stream) MetaInt() int {
	return s.metaint
}

// Read implements the standard Read interface. Only audio bytes are
// returned; metadata blocks are consumed at every metaint boundary.
func (s *Stream) Read(buf []byte) (int, error) {
	if s.metaint == 0 {
		return s.r.Read(buf)
	}

	if s.pos == s.metaint {
		if err := s.readMetadata(); err != nil {
			return 0, err
		}
		s.pos = 0
	}

	if left := s.metaint - s.pos; len(buf) > left {
		buf = buf[:left]
	}
	n, err := s.r.Read(buf)
	s.pos += n
	return n, err
}

func (s *Stream) readMetadata() error {
	length, err := s.r.ReadByte()
	if err != nil {
		return err
	}

	size := int(length) * 16
	if size == 0 {
		return nil
	}

	block := make([]byte, size)
	if _, err := io.ReadFull(s.r, block); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}

	if m := NewMetadata(block); !m.Equals(s.metadata) {
		s.metadata = m
		if s.MetadataCallbackFunc != nil {
			s.MetadataCallbackFunc(m)
		}
	}
	return nil
}

// Close closes the stream
func (s *Stream) Close() error {
	return s.rc.Close()
}
