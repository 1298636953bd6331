package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/gewebridge/internal/config"
)

const defaultCommandTimeout = 10 * time.Second

// CommandHandler runs a shell command with the payload as JSON on stdin.
// A timeout of zero uses ten seconds.
func CommandHandler(command string, timeout time.Duration) Handler {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return func(ctx context.Context, p Payload) error {
		input, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Stdin = bytes.NewReader(input)
		cmd.Env = append(cmd.Environ(), "GEWEBRIDGE_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		cmd.WaitDelay = time.Second

		if err := cmd.Run(); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("hook %q timed out after %s", command, timeout)
			}
			return fmt.Errorf("hook %q: %w: %s", command, err, strings.TrimSpace(stderr.String()))
		}
		return nil
	}
}

// RegisterConfigured attaches every configured shell hook to its event and
// returns how many were registered.
func (m *Manager) RegisterConfigured(cfg config.HooksConfig) int {
	byEvent := map[string][]config.HookEntry{
		EventMessageReceived: cfg.MessageReceived,
		EventReplySending:    cfg.ReplySending,
		EventDeliverySent:    cfg.DeliverySent,
		EventDeliveryFailed:  cfg.DeliveryFailed,
		EventGatewayStart:    cfg.GatewayStart,
		EventGatewayStop:     cfg.GatewayStop,
	}

	n := 0
	for _, event := range AllEvents {
		for i, h := range byEvent[event] {
			if strings.TrimSpace(h.Command) == "" {
				continue
			}
			name := fmt.Sprintf("config:%s:%d", event, i)
			m.On(event, name, CommandHandler(h.Command, time.Duration(h.Timeout)*time.Millisecond))
			n++
		}
	}
	return n
}
