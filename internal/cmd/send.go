package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/oarkflow/notifyevents"
	"github.com/oarkflow/notifyevents/internal/cli"
	"github.com/oarkflow/notifyevents/internal/config"
	"github.com/oarkflow/notifyevents/internal/tmpl"
	"github.com/oarkflow/notifyevents/internal/transport"
)

// TokenEnv is consulted when neither the flag nor the config carries a token.
const TokenEnv = "NOTIFY_EVENTS_TOKEN"

const stdinMarker = "-"

type sendOptions struct {
	token    string
	title    string
	content  string
	priority string
	level    string
	files    []string
	images   []string
	actions  []string
	dryRun   bool
}

func newSendCmd(global *globalOptions) *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message to a channel",
		Long: `Send a message to the Notify.Events channel identified by a source token.

Attachments are given as source[::content-type[::filename]], where source is a
local path, an http(s) URL or "-" for stdin. Actions are given as
name|title[|callback-url[|method]].`,
		Example: `  notifyevents send --token $TOKEN --title Deploy --content "v1.2.0 is live"
  journalctl -n 50 | notifyevents send --content - --level error
  notifyevents send --content "Nightly graph" --image ./graph.png::image/png
  notifyevents send --content "Disk full" --action "ack|Acknowledge|https://example.com/ack|post"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, global, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.token, "token", "t", "", "channel source token (default $"+TokenEnv+")")
	f.StringVar(&opts.title, "title", "", "message title")
	f.StringVarP(&opts.content, "content", "m", "", `message content, "-" reads it from stdin`)
	f.StringVarP(&opts.priority, "priority", "p", "", "message priority")
	f.StringVarP(&opts.level, "level", "l", "", "message level")
	f.StringArrayVarP(&opts.files, "file", "f", nil, "attach a file (repeatable)")
	f.StringArrayVarP(&opts.images, "image", "i", nil, "attach an image (repeatable)")
	f.StringArrayVarP(&opts.actions, "action", "a", nil, "add an action button (repeatable)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "encode the message and print its fields without sending")

	_ = cmd.RegisterFlagCompletionFunc("priority", fixedCompletion(enumStrings(notifyevents.Priorities())...))
	_ = cmd.RegisterFlagCompletionFunc("level", fixedCompletion(enumStrings(notifyevents.Levels())...))

	return cmd
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func runSend(cmd *cobra.Command, global *globalOptions, opts *sendOptions) error {
	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}

	msg, err := buildMessage(cmd.InOrStdin(), afero.NewOsFs(), cfg, opts)
	if err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.dryRun {
		return printDryRun(ctx, cmd.OutOrStdout(), client, msg)
	}

	token := resolveToken(opts.token, cfg)
	if token == "" {
		return fmt.Errorf("no token: use --token, the token config key or $%s", TokenEnv)
	}

	log.Info("Sending message",
		"title", msg.Title(),
		"priority", msg.Priority(),
		"level", msg.Level(),
		"files", len(msg.Files()),
		"images", len(msg.Images()),
		"actions", len(msg.Actions()))

	resp, err := client.Send(ctx, msg, token)
	if err != nil {
		var statusErr *notifyevents.TransportError
		if errors.As(err, &statusErr) {
			log.Debug("Relay rejected message", "status", statusErr.StatusCode, "body", statusErr.Body)
		}
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	log.Info("Message accepted", "status", resp.StatusCode)
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Message sent")
	return nil
}

// resolveToken picks the flag, then the config, then the environment.
func resolveToken(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	if cfg.Token != "" {
		return cfg.Token
	}
	return os.Getenv(TokenEnv)
}

func newClient(cfg *config.Config) (*notifyevents.Client, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	tr := transport.New(
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithTimeout(timeout),
	)
	return notifyevents.NewClient(
		notifyevents.WithTransport(tr),
		notifyevents.WithEndpoint(cfg.Endpoint),
		notifyevents.WithParallelism(cfg.Parallelism),
	), nil
}

// buildMessage merges flags, config defaults and templates into a message.
func buildMessage(stdin io.Reader, fs afero.Fs, cfg *config.Config, opts *sendOptions) (*notifyevents.Message, error) {
	tctx := tmpl.New(cfg)

	stdinUsed := false
	if opts.content == stdinMarker {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		tctx.Set("Stdin", string(data))
		stdinUsed = true
	}

	content, err := resolveContent(tctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	title, err := resolveTitle(tctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	msg := notifyevents.NewMessage(content).SetTitle(title)

	if p := firstNonEmpty(opts.priority, cfg.Message.Priority); p != "" {
		priority, err := notifyevents.ParsePriority(p)
		if err != nil {
			return nil, err
		}
		if _, err := msg.SetPriority(priority); err != nil {
			return nil, err
		}
	}
	if l := firstNonEmpty(opts.level, cfg.Message.Level); l != "" {
		level, err := notifyevents.ParseLevel(l)
		if err != nil {
			return nil, err
		}
		if _, err := msg.SetLevel(level); err != nil {
			return nil, err
		}
	}

	attach := func(values []string, add func(notifyevents.Source, ...notifyevents.AttachmentOption) *notifyevents.Message) error {
		for _, value := range values {
			spec, err := cli.ParseAttachment(value)
			if err != nil {
				return err
			}
			if spec.Source == stdinMarker {
				if stdinUsed {
					return fmt.Errorf("attachment %q: stdin is already consumed", value)
				}
				stdinUsed = true
			}
			src, attachOpts := spec.Options(fs, stdin)
			add(src, attachOpts...)
		}
		return nil
	}
	if err := attach(opts.images, msg.AddImage); err != nil {
		return nil, err
	}
	if err := attach(opts.files, msg.AddFile); err != nil {
		return nil, err
	}

	for i, a := range cfg.Actions {
		actionOpts, err := configActionOptions(tctx, a)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
		if _, err := msg.AddAction(a.Name, a.Title, actionOpts...); err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
	}
	for _, value := range opts.actions {
		spec, err := cli.ParseAction(value)
		if err != nil {
			return nil, err
		}
		if _, err := msg.AddAction(spec.Name, spec.Title, spec.Options()...); err != nil {
			return nil, fmt.Errorf("action %q: %w", value, err)
		}
	}

	return msg, nil
}

func resolveContent(tctx *tmpl.Context, cfg *config.Config, opts *sendOptions) (string, error) {
	if opts.content != "" && opts.content != stdinMarker {
		return opts.content, nil
	}
	if cfg.Message.ContentTemplate != "" {
		content, err := tctx.Apply(cfg.Message.ContentTemplate)
		if err != nil {
			return "", fmt.Errorf("failed to render content template: %w", err)
		}
		return content, nil
	}
	if opts.content == stdinMarker {
		return tctx.Get("Stdin"), nil
	}
	return "", errors.New("no content: use --content or message.content_template")
}

func resolveTitle(tctx *tmpl.Context, cfg *config.Config, opts *sendOptions) (string, error) {
	if opts.title != "" {
		return opts.title, nil
	}
	if cfg.Message.Title != "" {
		return cfg.Message.Title, nil
	}
	if cfg.Message.TitleTemplate != "" {
		title, err := tctx.Apply(cfg.Message.TitleTemplate)
		if err != nil {
			return "", fmt.Errorf("failed to render title template: %w", err)
		}
		return strings.TrimSpace(title), nil
	}
	return "", nil
}

func configActionOptions(tctx *tmpl.Context, a config.Action) ([]notifyevents.ActionOption, error) {
	var opts []notifyevents.ActionOption
	if a.CallbackURL != "" {
		opts = append(opts, notifyevents.WithCallbackURL(a.CallbackURL))
	}
	if a.CallbackMethod != "" {
		opts = append(opts, notifyevents.WithCallbackMethod(strings.ToLower(a.CallbackMethod)))
	}
	if len(a.CallbackHeaders) > 0 {
		opts = append(opts, notifyevents.WithCallbackHeaders(a.CallbackHeaders))
	}
	if a.CallbackContent != "" {
		content, err := tctx.Apply(a.CallbackContent)
		if err != nil {
			return nil, fmt.Errorf("failed to render callback_content: %w", err)
		}
		opts = append(opts, notifyevents.WithCallbackContent(content))
	}
	return opts, nil
}

// printDryRun encodes msg and lists the form fields it would submit.
func printDryRun(ctx context.Context, out io.Writer, client *notifyevents.Client, msg *notifyevents.Message) error {
	body, contentType, err := client.Encode(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Dry run: %d bytes, %s\n", body.Len(), contentType)
	r := multipart.NewReader(body, params["boundary"])
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return err
		}
		if part.FileName() != "" {
			fmt.Fprintf(out, "  %s: %s (%s, %d bytes)\n", part.FormName(), part.FileName(), part.Header.Get("Content-Type"), len(data))
		} else {
			fmt.Fprintf(out, "  %s: %s\n", part.FormName(), data)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
