package notifyevents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/oarkflow/notifyevents/internal/attachment"
	"github.com/oarkflow/notifyevents/internal/transport"
)

// DefaultEndpoint is the relay URL template; {token} is replaced by the
// source token.
const DefaultEndpoint = "https://notify.events/api/v1/channel/source/{token}/execute"

const (
	fieldTitle    = "title"
	fieldContent  = "content"
	fieldPriority = "priority"
	fieldLevel    = "level"
	fieldImages   = "images[]"
	fieldFiles    = "files[]"
)

// Transport submits the encoded message. *transport.Client from this module
// is the default.
type Transport interface {
	Perform(ctx context.Context, method, url string, body io.Reader, header http.Header) (*http.Response, error)
}

// Fetcher downloads URL attachments.
type Fetcher = attachment.Fetcher

// Client encodes messages and delivers them to the relay.
type Client struct {
	transport   Transport
	fetcher     Fetcher
	fs          afero.Fs
	endpoint    string
	parallelism int
	resolver    *attachment.Resolver
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithTransport replaces the transport used for submissions.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithFetcher replaces the fetcher used for URL attachments.
func WithFetcher(f Fetcher) ClientOption {
	return func(c *Client) {
		c.fetcher = f
	}
}

// WithFs sets the filesystem local attachment paths are opened from.
func WithFs(fs afero.Fs) ClientOption {
	return func(c *Client) {
		c.fs = fs
	}
}

// WithEndpoint overrides the relay URL template. It must contain {token}.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithParallelism caps how many attachments are resolved at once. Zero means
// all of them.
func WithParallelism(n int) ClientOption {
	return func(c *Client) {
		c.parallelism = n
	}
}

// NewClient creates a Client. Without options it talks to Notify.Events over
// a shared keep-alive transport and reads local files from the OS.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{endpoint: DefaultEndpoint}
	for _, opt := range opts {
		opt(c)
	}

	var shared *transport.Client
	if c.transport == nil || c.fetcher == nil {
		shared = transport.New(transport.WithUserAgent("notifyevents-go/" + Version))
	}
	if c.transport == nil {
		c.transport = shared
	}
	if c.fetcher == nil {
		if f, ok := c.transport.(Fetcher); ok {
			c.fetcher = f
		} else {
			c.fetcher = shared
		}
	}

	c.resolver = attachment.NewResolver(c.fetcher,
		attachment.WithFs(c.fs),
		attachment.WithParallelism(c.parallelism),
	)
	return c
}

var defaultClient = NewClient()

// Send delivers msg with the default client.
func Send(ctx context.Context, msg *Message, token string) (*http.Response, error) {
	return defaultClient.Send(ctx, msg, token)
}

// Send delivers the message with the default client. See Client.Send.
func (m *Message) Send(ctx context.Context, token string) (*http.Response, error) {
	return defaultClient.Send(ctx, m, token)
}

// URL returns the endpoint messages for token are posted to.
func (c *Client) URL(token string) string {
	return strings.ReplaceAll(c.endpoint, "{token}", url.PathEscape(token))
}

// Send encodes msg and posts it to the channel identified by token. If any
// attachment cannot be resolved nothing is posted. The response is returned
// as the transport produced it; the caller must close its body.
func (c *Client) Send(ctx context.Context, msg *Message, token string) (*http.Response, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty source token", ErrInvalidArgument)
	}

	body, contentType, err := c.Encode(ctx, msg)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Content-Type", contentType)

	log.Debug("Sending message", "size", body.Len())
	return c.transport.Perform(ctx, http.MethodPost, c.URL(token), body, header)
}

// Encode builds the multipart body for msg and returns it with its
// Content-Type. Attachments are resolved, read and released before Encode
// returns.
func (c *Client) Encode(ctx context.Context, msg *Message) (*bytes.Buffer, string, error) {
	snap := msg.snapshot()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if snap.title != "" {
		if err := w.WriteField(fieldTitle, snap.title); err != nil {
			return nil, "", err
		}
	}
	scalars := [][2]string{
		{fieldContent, snap.content},
		{fieldPriority, string(snap.priority)},
		{fieldLevel, string(snap.level)},
	}
	for _, f := range scalars {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if err := c.writeAttachments(ctx, w, snap); err != nil {
		return nil, "", err
	}

	for i, a := range snap.actions {
		if err := writeAction(w, i, a); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	log.Debug("Encoded message",
		"images", len(snap.images),
		"files", len(snap.files),
		"actions", len(snap.actions))
	return body, w.FormDataContentType(), nil
}

func (c *Client) writeAttachments(ctx context.Context, w *multipart.Writer, snap *Message) error {
	reqs := slices.Concat(snap.images, snap.files)
	if len(reqs) == 0 {
		return nil
	}

	resolved, err := c.resolver.ResolveAll(ctx, reqs)
	if err != nil {
		return err
	}
	defer attachment.CloseAll(resolved)

	for i, res := range resolved {
		field := fieldFiles
		if i < len(snap.images) {
			field = fieldImages
		}
		if err := writeFile(w, field, res); err != nil {
			return fmt.Errorf("write %s %s: %w", field, res.Filename, err)
		}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFile(w *multipart.Writer, field string, res *attachment.Resolved) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(res.Filename)))
	h.Set("Content-Type", res.ContentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, res.Body)
	return err
}

func writeAction(w *multipart.Writer, index int, a Action) error {
	prefix := "actions[" + strconv.Itoa(index) + "]"
	fields := [][2]string{
		{"name", a.Name},
		{"title", a.Title},
		{"callback_url", a.CallbackURL},
		{"callback_method", a.CallbackMethod},
		{"callback_content", a.CallbackContent},
	}
	for _, f := range fields {
		if err := w.WriteField(prefix+"["+f[0]+"]", f[1]); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(a.CallbackHeaders))
	for name := range a.CallbackHeaders {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		field := prefix + "[callback_headers][" + encodeURI(name) + "]"
		if err := w.WriteField(field, a.CallbackHeaders[name]); err != nil {
			return err
		}
	}
	return nil
}

// encodeURI percent-encodes s the way browsers' encodeURI does: reserved and
// unreserved URI characters stay as they are.
func encodeURI(s string) string {
	const keep = ";,/?:@&=+$-_.!~*'()#"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9',
			strings.IndexByte(keep, ch) >= 0:
			b.WriteByte(ch)
		default:
			fmt.Fprintf(&b, "%%%02X", ch)
		}
	}
	return b.String()
}
