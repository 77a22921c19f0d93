// Package attachment normalizes the different ways a caller can supply a file
// (local path, remote URL, in-memory buffer, open stream) into a single
// readable record ready to be written into a multipart body.
package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/oarkflow/notifyevents/internal/parallel"
	"github.com/oarkflow/notifyevents/internal/urlcheck"
)

const (
	// DefaultFilename is used when no filename is supplied or derivable.
	DefaultFilename = "file.dat"
	// DefaultContentType is used when no content type is supplied.
	DefaultContentType = "application/octet-stream"
)

// ErrInvalidAttachment is returned when a source is none of the accepted shapes.
var ErrInvalidAttachment = errors.New("invalid attachment")

// Kind tags how a source was resolved.
type Kind int

const (
	KindUnknown Kind = iota
	KindLocalPath
	KindRemoteURL
	KindBuffer
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindLocalPath:
		return "path"
	case KindRemoteURL:
		return "url"
	case KindBuffer:
		return "buffer"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

type sourceShape int

const (
	shapeNone sourceShape = iota
	shapeText
	shapeBytes
	shapeStream
)

// Source is a caller-supplied attachment value. Whether text is a path or a
// URL is only decided at resolution time.
type Source struct {
	shape  sourceShape
	text   string
	data   []byte
	reader io.Reader
}

// Text returns a source naming a local path or an http(s) URL.
func Text(s string) Source {
	return Source{shape: shapeText, text: s}
}

// Bytes returns a source holding the attachment content in memory.
func Bytes(b []byte) Source {
	return Source{shape: shapeBytes, data: b}
}

// Stream returns a source reading from an already open stream. The stream is
// read once and is not closed by the resolver.
func Stream(r io.Reader) Source {
	return Source{shape: shapeStream, reader: r}
}

func (s Source) String() string {
	switch s.shape {
	case shapeText:
		return fmt.Sprintf("%q", s.text)
	case shapeBytes:
		return fmt.Sprintf("buffer(%d bytes)", len(s.data))
	case shapeStream:
		if s.reader == nil {
			return "stream(nil)"
		}
		return "stream"
	default:
		return "empty source"
	}
}

// Request is an attachment as recorded on a message. Empty Filename or
// ContentType mean the caller did not supply one.
type Request struct {
	Source      Source
	Filename    string
	ContentType string
}

// Resolved is a request turned into a readable payload. It lives for the
// duration of one send.
type Resolved struct {
	Kind        Kind
	Body        io.Reader
	Filename    string
	ContentType string

	closer io.Closer
}

// Close releases handles opened by the resolver. Streams supplied by the
// caller are left open.
func (r *Resolved) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Fetcher downloads remote attachments.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Resolver turns requests into resolved attachments.
type Resolver struct {
	fetcher     Fetcher
	fs          afero.Fs
	parallelism int
}

// Option configures a Resolver
type Option func(*Resolver)

// WithFs sets the filesystem local paths are looked up in.
func WithFs(fs afero.Fs) Option {
	return func(r *Resolver) {
		if fs != nil {
			r.fs = fs
		}
	}
}

// WithParallelism caps concurrent resolutions in ResolveAll. Zero or less
// resolves everything at once.
func WithParallelism(n int) Option {
	return func(r *Resolver) {
		r.parallelism = n
	}
}

// NewResolver creates a resolver that fetches URLs through fetcher and opens
// paths on the OS filesystem unless WithFs says otherwise.
func NewResolver(fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		fs:      afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve classifies req's source and opens it.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	res := &Resolved{
		Filename:    req.Filename,
		ContentType: req.ContentType,
	}
	if res.ContentType == "" {
		res.ContentType = DefaultContentType
	}

	src := req.Source
	switch {
	case src.shape == shapeText && urlcheck.IsValidHTTPURL(src.text):
		if r.fetcher == nil {
			return nil, fmt.Errorf("%w: no fetcher for %s", ErrInvalidAttachment, src)
		}
		body, err := r.fetcher.Fetch(ctx, src.text)
		if err != nil {
			return nil, fmt.Errorf("fetch attachment %s: %w", src.text, err)
		}
		res.Kind = KindRemoteURL
		res.Body = body
		res.closer = body
		if res.Filename == "" {
			res.Filename = urlBasename(src.text)
		}

	case src.shape == shapeText && r.isFile(src.text):
		f, err := r.fs.Open(src.text)
		if err != nil {
			return nil, fmt.Errorf("open attachment %s: %w", src.text, err)
		}
		res.Kind = KindLocalPath
		res.Body = f
		res.closer = f
		if res.Filename == "" {
			res.Filename = filepath.Base(src.text)
		}

	case src.shape == shapeBytes:
		res.Kind = KindBuffer
		res.Body = bytes.NewReader(src.data)

	case src.shape == shapeStream && src.reader != nil:
		res.Kind = KindStream
		res.Body = src.reader

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAttachment, src)
	}

	if res.Filename == "" {
		res.Filename = DefaultFilename
	}

	log.Debug("Resolved attachment", "kind", res.Kind, "filename", res.Filename, "content_type", res.ContentType)
	return res, nil
}

// ResolveAll resolves every request concurrently. The output is indexed like
// reqs. If any resolution fails, everything already opened is closed and the
// first error is returned.
func (r *Resolver) ResolveAll(ctx context.Context, reqs []Request) ([]*Resolved, error) {
	out, err := parallel.Map(ctx, reqs, r.parallelism, r.Resolve)
	if err != nil {
		CloseAll(out)
		return nil, err
	}
	return out, nil
}

// CloseAll closes every resolved attachment, ignoring nil entries.
func CloseAll(items []*Resolved) {
	for _, item := range items {
		if err := item.Close(); err != nil {
			log.Debug("Failed to close attachment", "filename", item.Filename, "error", err)
		}
	}
}

func (r *Resolver) isFile(name string) bool {
	if name == "" {
		return false
	}
	info, err := r.fs.Stat(name)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func urlBasename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	return base
}
