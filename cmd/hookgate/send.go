package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"hookgate/internal/gateway/mode"
	"hookgate/internal/gateway/models"
	"hookgate/internal/gateway/service"
	"hookgate/internal/platform/config"
	"hookgate/internal/platform/logger"
)

type sendOptions struct {
	channel    string
	message    string
	file       string
	mime       string
	production bool
	webhook    string
}

// newSendCommand forwards one message or file from the command line. The
// destination comes from the configured table unless --webhook is given.
func newSendCommand() *cobra.Command {
	var opts sendOptions

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Forward a chat message or file to the configured webhook",
		Example: `  hookgate send --channel chat --message "hello"
  hookgate send --channel image --file cat.png --production`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Level()))
			if err != nil {
				return err
			}
			return runSend(cmd, a, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.channel, "channel", "c", string(models.ChannelChat), "chat, document, image, video or audio")
	f.StringVarP(&opts.message, "message", "m", "", "Chat message")
	f.StringVarP(&opts.file, "file", "f", "", "File to upload")
	f.StringVar(&opts.mime, "mime", "", "Declared MIME type (sniffed when empty)")
	f.BoolVar(&opts.production, "production", false, "Use the production webhook instead of the test one")
	f.StringVar(&opts.webhook, "webhook", "", "Explicit destination, bypassing the table")
	return cmd
}

func runSend(cmd *cobra.Command, a *app, opts sendOptions) error {
	ch, err := models.ParseChannel(opts.channel)
	if err != nil {
		return err
	}

	dest := opts.webhook
	if dest == "" {
		if dest, err = a.resolver.Resolve(ch, opts.production); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	var env *models.Envelope
	if ch == models.ChannelChat {
		env, err = a.gateway.Chat(ctx, service.ChatInput{Message: opts.message, WebhookURL: dest})
	} else {
		var payload []byte
		var name string
		if opts.file != "" {
			if payload, err = os.ReadFile(opts.file); err != nil {
				return err
			}
			name = filepath.Base(opts.file)
		}
		env, err = a.gateway.Upload(ctx, service.UploadInput{
			Kind:         ch,
			Payload:      payload,
			DeclaredMime: opts.mime,
			FileName:     name,
			WebhookURL:   dest,
		})
	}
	if err != nil {
		return writeJSON(cmd.OutOrStdout(), a.gateway.Reject(ctx, ch, err, map[string]any{
			"mode": mode.Name(opts.production),
		}), err)
	}

	if err := writeJSON(cmd.OutOrStdout(), env, nil); err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("forward failed: %s", env.Error)
	}
	return nil
}

func writeJSON(w io.Writer, v any, cause error) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return cause
}
