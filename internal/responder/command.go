package responder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/gewebridge/internal/domain"
	"github.com/soyeahso/gewebridge/internal/logging"
)

// CommandConfig configures an external reply program.
type CommandConfig struct {
	// Command is the binary to run.
	Command string

	// Args are passed verbatim.
	Args []string

	// Timeout bounds one invocation.
	Timeout time.Duration
}

// Command runs an external program per message. The message text is written
// to stdin and message metadata is exported as GEWE_* variables. Every
// stdout line is either a JSON object {"type": ..., "content": ...} or
// plain text; consecutive plain lines form one text reply.
type Command struct {
	cfg CommandConfig
	log *logging.Logger
}

func NewCommand(cfg CommandConfig, log *logging.Logger) *Command {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Command{cfg: cfg, log: log.Sub("responder")}
}

type replyLine struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (c *Command) Respond(ctx context.Context, msg domain.InboundMessage) ([]domain.Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.Command, c.cfg.Args...)
	cmd.Stdin = strings.NewReader(msg.Content)
	cmd.Env = append(os.Environ(), messageEnv(msg)...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("responder timed out after %s", c.cfg.Timeout)
		}
		return nil, fmt.Errorf("responder %s: %w: %s", c.cfg.Command, err, strings.TrimSpace(stderr.String()))
	}

	replies, err := ParseOutput(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	c.log.Debug().
		Str("from", msg.FromUserID).
		Int("replies", len(replies)).
		Dur("took", time.Since(start)).
		Msg("responder finished")
	return replies, nil
}

func messageEnv(msg domain.InboundMessage) []string {
	return []string{
		"GEWE_MSG_ID=" + msg.ID,
		"GEWE_MSG_TYPE=" + string(msg.Type),
		"GEWE_FROM=" + msg.FromUserID,
		"GEWE_ACTUAL_USER=" + msg.ActualUserID,
		"GEWE_ACTUAL_USER_NAME=" + msg.ActualUserName,
		"GEWE_TO=" + msg.ToUserID,
		"GEWE_IS_GROUP=" + strconv.FormatBool(msg.IsGroup),
	}
}

// ParseOutput converts responder stdout into replies.
func ParseOutput(out []byte) (replies []domain.Reply, err error) {
	var text []string
	defer func() {
		if err != nil {
			closeBodies(replies)
			replies = nil
		}
	}()

	flush := func() {
		if len(text) > 0 {
			replies = append(replies, domain.TextReply(strings.Join(text, "\n")))
			text = nil
		}
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 4<<20)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "{") {
			var rl replyLine
			if err := json.Unmarshal([]byte(trimmed), &rl); err == nil && rl.Type != "" {
				r, err := toReply(rl)
				if err != nil {
					return replies, err
				}
				flush()
				replies = append(replies, r)
				continue
			}
		}
		if trimmed == "" && len(text) == 0 {
			continue
		}
		text = append(text, line)
	}
	if err := sc.Err(); err != nil {
		return replies, fmt.Errorf("reading responder output: %w", err)
	}

	// trailing blank lines
	for len(text) > 0 && strings.TrimSpace(text[len(text)-1]) == "" {
		text = text[:len(text)-1]
	}
	flush()
	return replies, nil
}

var openImage = func(path string) (io.ReadCloser, error) { return os.Open(path) }

func closeBodies(replies []domain.Reply) {
	for _, r := range replies {
		if r.Body != nil {
			r.Body.Close()
		}
	}
}

func toReply(rl replyLine) (domain.Reply, error) {
	kind := domain.ReplyKind(rl.Type)
	if !kind.Valid() {
		return domain.Reply{}, fmt.Errorf("responder: unknown reply type %q", rl.Type)
	}
	if kind == domain.ReplyImage {
		f, err := openImage(rl.Content)
		if err != nil {
			return domain.Reply{}, fmt.Errorf("responder: opening image: %w", err)
		}
		return domain.ImageReply(f), nil
	}
	return domain.Reply{Kind: kind, Content: rl.Content}, nil
}

func secondsOr(n, def int) time.Duration {
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}
