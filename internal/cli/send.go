package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soyeahso/gewebridge/internal/domain"
	"github.com/soyeahso/gewebridge/internal/hooks"
	"github.com/spf13/cobra"
)

type sendFlags struct {
	to       string
	mention  string
	text     string
	voice    string
	image    string
	imageURL string
	videoURL string
	app      string
}

// reply builds the single reply selected by the flags.
func (f sendFlags) reply() (domain.Reply, error) {
	var replies []domain.Reply
	if f.text != "" {
		replies = append(replies, domain.TextReply(f.text))
	}
	if f.voice != "" {
		replies = append(replies, domain.VoiceReply(f.voice))
	}
	if f.image != "" {
		replies = append(replies, domain.Reply{Kind: domain.ReplyImage, Content: f.image})
	}
	if f.imageURL != "" {
		replies = append(replies, domain.ImageURLReply(f.imageURL))
	}
	if f.videoURL != "" {
		replies = append(replies, domain.VideoURLReply(f.videoURL))
	}
	if f.app != "" {
		replies = append(replies, domain.AppReply(f.app))
	}

	switch len(replies) {
	case 0:
		return domain.Reply{}, errors.New("one of --text, --voice, --image, --image-url, --video-url or --app is required")
	case 1:
		return replies[0], nil
	default:
		return domain.Reply{}, errors.New("only one reply can be sent at a time")
	}
}

func newSendCmd() *cobra.Command {
	var f sendFlags

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Deliver one reply through the pipeline",
		Long: "Send delivers a single reply the same way the bridge does. Voice, image and video\n" +
			"replies are staged in the temp root, so a running gateway must be serving it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.to == "" {
				return errors.New("--to is required")
			}
			reply, err := f.reply()
			if err != nil {
				return err
			}
			if reply.Kind == domain.ReplyImage {
				file, err := os.Open(reply.Content)
				if err != nil {
					return err
				}
				reply = domain.ImageReply(file)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			if client.AppID() == "" {
				return errors.New("gewe.appId is not set; run the gateway once to log in")
			}

			db, journal, err := openJournal(cfg)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			hookMgr := hooks.NewManager(log)
			hookMgr.RegisterConfigured(cfg.Hooks)

			pipeline, _, err := newPipeline(cfg, pipelineDeps{
				provider: client,
				hooks:    hookMgr,
				journal:  journal,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			target := domain.DirectTarget(f.to)
			target.Mention = f.mention
			res := pipeline.Send(ctx, reply, target)
			if !res.OK() {
				return fmt.Errorf("%s delivery failed (%s): %w", res.Kind, res.Failure, res.Err)
			}
			if res.Segments > 0 {
				fmt.Printf("Sent %s to %s in %d segment(s)\n", res.Kind, f.to, res.Segments)
			} else {
				fmt.Printf("Sent %s to %s\n", res.Kind, f.to)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.to, "to", "", "receiver wxid or chatroom id")
	cmd.Flags().StringVar(&f.mention, "at", "", "wxid to mention when sending text to a chatroom")
	cmd.Flags().StringVar(&f.text, "text", "", "text message")
	cmd.Flags().StringVar(&f.voice, "voice", "", "path to an MP3 file to send as voice")
	cmd.Flags().StringVar(&f.image, "image", "", "path to an image file")
	cmd.Flags().StringVar(&f.imageURL, "image-url", "", "image URL to download and send")
	cmd.Flags().StringVar(&f.videoURL, "video-url", "", "video URL or local path")
	cmd.Flags().StringVar(&f.app, "app", "", "appmsg XML payload")

	return cmd
}
