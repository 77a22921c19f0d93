// Package cli turns command-line attachment and action specifiers into
// message options.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/oarkflow/notifyevents"
	"github.com/oarkflow/notifyevents/internal/urlcheck"
)

const (
	specSeparator   = "::"
	actionSeparator = "|"
	stdinSource     = "-"
)

// AttachmentSpec is a parsed --file or --image value of the form
// source[::content-type[::filename]].
type AttachmentSpec struct {
	Source      string
	ContentType string
	Filename    string
}

// ParseAttachment splits an attachment flag value.
func ParseAttachment(input string) (AttachmentSpec, error) {
	parts := strings.SplitN(input, specSeparator, 3)
	spec := AttachmentSpec{Source: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		spec.ContentType = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		spec.Filename = strings.TrimSpace(parts[2])
	}
	if spec.Source == "" {
		return AttachmentSpec{}, fmt.Errorf("attachment %q: source is required", input)
	}
	return spec, nil
}

// Options converts the spec into message attachment options. Local files
// without an explicit content type get one detected from their content; the
// stdin marker reads the attachment from stdin.
func (s AttachmentSpec) Options(fs afero.Fs, stdin io.Reader) (notifyevents.Source, []notifyevents.AttachmentOption) {
	var opts []notifyevents.AttachmentOption
	if s.Filename != "" {
		opts = append(opts, notifyevents.WithFilename(s.Filename))
	}

	contentType := s.ContentType
	if contentType == "" && s.Source != stdinSource && !urlcheck.IsValidHTTPURL(s.Source) {
		contentType = DetectContentType(fs, s.Source)
	}
	if contentType != "" {
		opts = append(opts, notifyevents.WithContentType(contentType))
	}

	if s.Source == stdinSource {
		return notifyevents.Reader(stdin), opts
	}
	return notifyevents.PathOrURL(s.Source), opts
}

// DetectContentType sniffs the MIME type of a local file. It returns an empty
// string when the file cannot be read so the library default applies.
func DetectContentType(fs afero.Fs, path string) string {
	f, err := fs.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return ""
	}
	return mt.String()
}

// ActionSpec is a parsed --action value of the form
// name|title[|callback-url[|method]].
type ActionSpec struct {
	Name           string
	Title          string
	CallbackURL    string
	CallbackMethod string
}

// ParseAction splits an action flag value.
func ParseAction(input string) (ActionSpec, error) {
	parts := strings.Split(input, actionSeparator)
	if len(parts) < 2 || len(parts) > 4 {
		return ActionSpec{}, fmt.Errorf("action %q: expected name|title[|url[|method]]", input)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	spec := ActionSpec{Name: parts[0], Title: parts[1]}
	if spec.Name == "" || spec.Title == "" {
		return ActionSpec{}, fmt.Errorf("action %q: name and title are required", input)
	}
	if len(parts) > 2 {
		spec.CallbackURL = parts[2]
	}
	if len(parts) > 3 {
		spec.CallbackMethod = strings.ToLower(parts[3])
	}
	return spec, nil
}

// Options converts the spec into AddAction options.
func (s ActionSpec) Options() []notifyevents.ActionOption {
	var opts []notifyevents.ActionOption
	if s.CallbackURL != "" {
		opts = append(opts, notifyevents.WithCallbackURL(s.CallbackURL))
	}
	if s.CallbackMethod != "" {
		opts = append(opts, notifyevents.WithCallbackMethod(s.CallbackMethod))
	}
	return opts
}
