package notifyevents

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/oarkflow/notifyevents/internal/attachment"
	"github.com/oarkflow/notifyevents/internal/urlcheck"
)

// Priority controls how prominently recipients highlight a message.
type Priority string

const (
	PriorityLowest  Priority = "lowest"
	PriorityLow     Priority = "low"
	PriorityNormal  Priority = "normal"
	PriorityHigh    Priority = "high"
	PriorityHighest Priority = "highest"
)

var priorities = []Priority{PriorityLowest, PriorityLow, PriorityNormal, PriorityHigh, PriorityHighest}

// Priorities returns every accepted priority, lowest first.
func Priorities() []Priority {
	return slices.Clone(priorities)
}

// Valid reports whether p is one of the accepted priorities.
func (p Priority) Valid() bool {
	return slices.Contains(priorities, p)
}

// ParsePriority converts s into a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: invalid priority value %q", ErrInvalidArgument, s)
	}
	return p, nil
}

// Level is the severity or category of a message.
type Level string

const (
	LevelVerbose Level = "verbose"
	LevelInfo    Level = "info"
	LevelNotice  Level = "notice"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

var levels = []Level{LevelVerbose, LevelInfo, LevelNotice, LevelWarning, LevelError, LevelSuccess}

// Levels returns every accepted level.
func Levels() []Level {
	return slices.Clone(levels)
}

// Valid reports whether l is one of the accepted levels.
func (l Level) Valid() bool {
	return slices.Contains(levels, l)
}

// ParseLevel converts s into a Level.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if !l.Valid() {
		return "", fmt.Errorf("%w: invalid level value %q", ErrInvalidArgument, s)
	}
	return l, nil
}

// DefaultCallbackMethod is the HTTP method used by action callbacks unless
// WithCallbackMethod says otherwise.
const DefaultCallbackMethod = "get"

// Action is a button rendered by the receiving channel. Pressing it makes the
// relay call CallbackURL.
type Action struct {
	Name            string
	Title           string
	CallbackURL     string
	CallbackMethod  string
	CallbackHeaders map[string]string
	CallbackContent string
}

func (a Action) clone() Action {
	a.CallbackHeaders = maps.Clone(a.CallbackHeaders)
	if a.CallbackHeaders == nil {
		a.CallbackHeaders = map[string]string{}
	}
	return a
}

// ActionOption configures an action added with AddAction.
type ActionOption func(*actionSpec)

type actionSpec struct {
	Action
	hasCallbackURL bool
}

// WithCallbackURL sets the URL the relay calls when the action is used. It
// must be an absolute http(s) URL without credentials.
func WithCallbackURL(u string) ActionOption {
	return func(s *actionSpec) {
		s.CallbackURL = u
		s.hasCallbackURL = true
	}
}

// WithCallbackMethod sets the callback HTTP method.
func WithCallbackMethod(method string) ActionOption {
	return func(s *actionSpec) {
		s.CallbackMethod = method
	}
}

// WithCallbackHeaders sets headers sent with the callback request.
func WithCallbackHeaders(headers map[string]string) ActionOption {
	return func(s *actionSpec) {
		s.CallbackHeaders = maps.Clone(headers)
	}
}

// WithCallbackContent sets the callback request body.
func WithCallbackContent(content string) ActionOption {
	return func(s *actionSpec) {
		s.CallbackContent = content
	}
}

// Source is an attachment value: a local path or URL, a byte buffer, or an
// open stream.
type Source = attachment.Source

// PathOrURL returns a source naming a local file or an http(s) URL. Which one
// it is gets decided when the message is sent.
func PathOrURL(s string) Source { return attachment.Text(s) }

// Buffer returns a source holding the attachment content.
func Buffer(b []byte) Source { return attachment.Bytes(b) }

// Reader returns a source read from r when the message is sent. r is not
// closed.
func Reader(r io.Reader) Source { return attachment.Stream(r) }

// Attachment is a file or image recorded on a message. Empty Filename and
// ContentType fall back to defaults when the message is sent.
type Attachment = attachment.Request

// AttachmentOption configures an attachment added with AddFile or AddImage.
type AttachmentOption func(*Attachment)

// WithFilename sets the attachment filename.
func WithFilename(name string) AttachmentOption {
	return func(a *Attachment) {
		a.Filename = name
	}
}

// WithContentType sets the attachment MIME type.
func WithContentType(contentType string) AttachmentOption {
	return func(a *Attachment) {
		a.ContentType = contentType
	}
}

// Message is a notification under construction. Create one with NewMessage.
// A Message may be sent any number of times but must not be modified while a
// send is in flight.
type Message struct {
	title    string
	content  string
	priority Priority
	level    Level
	files    []Attachment
	images   []Attachment
	actions  []Action
}

// NewMessage creates a message with the given content, normal priority and
// info level.
func NewMessage(content string) *Message {
	return &Message{
		content:  content,
		priority: PriorityNormal,
		level:    LevelInfo,
	}
}

// SetTitle sets the message title. An empty title is not sent.
func (m *Message) SetTitle(title string) *Message {
	m.title = title
	return m
}

// Title returns the message title.
func (m *Message) Title() string {
	return m.title
}

// SetContent sets the message text.
func (m *Message) SetContent(content string) *Message {
	m.content = content
	return m
}

// Content returns the message text.
func (m *Message) Content() string {
	return m.content
}

// SetPriority sets the priority. Recipients that support priorities highlight
// the message accordingly. The message is unchanged on error.
func (m *Message) SetPriority(p Priority) (*Message, error) {
	if !p.Valid() {
		return m, fmt.Errorf("%w: invalid priority value %q", ErrInvalidArgument, p)
	}
	m.priority = p
	return m, nil
}

// Priority returns the message priority. It is empty only for a Message
// not built by NewMessage.
func (m *Message) Priority() Priority {
	return m.priority
}

// SetLevel sets the level. The message is unchanged on error.
func (m *Message) SetLevel(l Level) (*Message, error) {
	if !l.Valid() {
		return m, fmt.Errorf("%w: invalid level value %q", ErrInvalidArgument, l)
	}
	m.level = l
	return m, nil
}

// Level returns the message level. It is empty only for a Message not built
// by NewMessage.
func (m *Message) Level() Level {
	return m.level
}

// AddFile appends a file attachment. The source is not inspected until the
// message is sent.
func (m *Message) AddFile(src Source, opts ...AttachmentOption) *Message {
	m.files = append(m.files, newAttachment(src, opts))
	return m
}

// AddImage appends an image attachment. The source is not inspected until the
// message is sent.
func (m *Message) AddImage(src Source, opts ...AttachmentOption) *Message {
	m.images = append(m.images, newAttachment(src, opts))
	return m
}

func newAttachment(src Source, opts []AttachmentOption) Attachment {
	a := Attachment{Source: src}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// Files returns a copy of the file attachments in insertion order.
func (m *Message) Files() []Attachment {
	return slices.Clone(m.files)
}

// Images returns a copy of the image attachments in insertion order.
func (m *Message) Images() []Attachment {
	return slices.Clone(m.images)
}

// AddAction appends an action button. It fails with ErrInvalidArgument when a
// callback URL is given and is not a valid http(s) URL; the message is
// unchanged in that case.
func (m *Message) AddAction(name, title string, opts ...ActionOption) (*Message, error) {
	spec := actionSpec{Action: Action{
		Name:           name,
		Title:          title,
		CallbackMethod: DefaultCallbackMethod,
	}}
	for _, opt := range opts {
		opt(&spec)
	}

	if spec.hasCallbackURL && !urlcheck.IsValidHTTPURL(spec.CallbackURL) {
		return m, fmt.Errorf("%w: invalid callback url %q", ErrInvalidArgument, spec.CallbackURL)
	}

	m.actions = append(m.actions, spec.Action.clone())
	return m, nil
}

// Actions returns a copy of the actions in insertion order.
func (m *Message) Actions() []Action {
	out := make([]Action, len(m.actions))
	for i, a := range m.actions {
		out[i] = a.clone()
	}
	return out
}

// snapshot copies the message so a send works on state that later mutations
// cannot reach. An unset priority or level is sent as normal or info.
func (m *Message) snapshot() *Message {
	snap := &Message{
		title:    m.title,
		content:  m.content,
		priority: m.priority,
		level:    m.level,
		files:    m.Files(),
		images:   m.Images(),
		actions:  m.Actions(),
	}
	if snap.priority == "" {
		snap.priority = PriorityNormal
	}
	if snap.level == "" {
		snap.level = LevelInfo
	}
	return snap
}
