/*
Package notifyevents sends notifications to channels configured on the
Notify.Events service.

A message carries a text, an optional title, a priority, a level, file and
image attachments, and action buttons with callbacks:

	msg := notifyevents.NewMessage("Disk usage is above 90%").
		SetTitle("db-01").
		AddFile(notifyevents.PathOrURL("/var/log/df.txt")).
		AddImage(notifyevents.PathOrURL("https://example.com/graph.png"))

	if _, err := msg.SetLevel(notifyevents.LevelWarning); err != nil {
		return err
	}

	resp, err := msg.Send(ctx, token)

Attachments can be local paths, http(s) URLs, byte buffers or open streams.
They are resolved concurrently when the message is sent; a source that is
none of these fails the send with ErrInvalidAttachment before anything is
submitted.

# Errors

Setters that validate their input return ErrInvalidArgument. Non-2xx answers
from the relay or from an attachment URL are returned as *TransportError;
network errors come back unchanged. Nothing is retried.
*/
package notifyevents

// Version is the current version of the client
const Version = "1.0.0"

// BuildDate is set at build time
var BuildDate string

// GitCommit is set at build time
var GitCommit string
