package notifyevents

import (
	"errors"

	"github.com/oarkflow/notifyevents/internal/attachment"
	"github.com/oarkflow/notifyevents/internal/transport"
)

// ErrInvalidArgument is returned by setters for out-of-range priorities and
// levels and for malformed callback URLs.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrInvalidAttachment is returned by Send when an attachment source is not a
// valid URL, an existing file, a buffer or a stream.
var ErrInvalidAttachment = attachment.ErrInvalidAttachment

// TransportError describes a non-2xx response from the relay or from an
// attachment URL.
type TransportError = transport.StatusError
