// Package wechat turns gewechat callbacks into inbound messages and brings
// the gateway session up at startup.
package wechat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/gewebridge/internal/domain"
	"github.com/soyeahso/gewebridge/internal/logging"
)

// Router receives messages that survive filtering.
type Router interface {
	HandleInbound(ctx context.Context, msg domain.InboundMessage)
}

type stringField struct {
	String string `json:"string"`
}

type callback struct {
	TypeName string        `json:"TypeName"`
	Appid    string        `json:"Appid"`
	Wxid     string        `json:"Wxid"`
	Data     *callbackData `json:"Data"`

	TestMsg *string `json:"testMsg"`
	Token   *string `json:"token"`
}

type callbackData struct {
	MsgID        int64       `json:"MsgId"`
	NewMsgID     int64       `json:"NewMsgId"`
	FromUserName stringField `json:"FromUserName"`
	ToUserName   stringField `json:"ToUserName"`
	MsgType      int         `json:"MsgType"`
	Content      stringField `json:"Content"`
	CreateTime   int64       `json:"CreateTime"`
	PushContent  string      `json:"PushContent"`
}

const groupSuffix = "@chatroom"

var nonUserSenders = map[string]bool{
	"weixin":   true,
	"fmessage": true,
	"newsapp":  true,
}

// Handler filters webhook events and hands the rest to the router on a
// separate goroutine so the gateway gets its answer right away.
type Handler struct {
	router Router
	maxAge time.Duration
	log    *logging.Logger
	now    func() time.Time

	wg sync.WaitGroup
}

// NewHandler creates a webhook handler. Messages older than maxAge are
// dropped; a non-positive maxAge keeps everything.
func NewHandler(router Router, maxAge time.Duration, log *logging.Logger) *Handler {
	return &Handler{
		router: router,
		maxAge: maxAge,
		log:    log.Sub("wechat"),
		now:    time.Now,
	}
}

// HandleCallback decodes one callback body.
func (h *Handler) HandleCallback(ctx context.Context, body []byte) error {
	var cb callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return fmt.Errorf("decoding callback: %w", err)
	}

	if cb.TestMsg != nil && cb.Token != nil {
		h.log.Debug().Msg("callback test message")
		return nil
	}
	if cb.Data == nil {
		h.log.Debug().Str("type", cb.TypeName).Msg("ignoring event without message data")
		return nil
	}

	msg := parseMessage(&cb)
	switch {
	case msg.Type == domain.MessageStatusSync:
		h.log.Debug().Str("from", msg.FromUserID).Msg("ignoring status sync")
		return nil
	case msg.Type == domain.MessageNonUser:
		h.log.Debug().Str("from", msg.FromUserID).Msg("ignoring non-user message")
		return nil
	case msg.MyMsg:
		h.log.Debug().Str("from", msg.ActualUserID).Msg("ignoring own message")
		return nil
	case h.maxAge > 0 && msg.Expired(h.now(), h.maxAge):
		h.log.Debug().
			Str("from", msg.ActualUserID).
			Time("created", msg.CreateTime).
			Msg("ignoring expired message")
		return nil
	}

	rctx := context.WithoutCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.router.HandleInbound(rctx, msg)
	}()
	return nil
}

// Wait blocks until every routed message has been handled.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func parseMessage(cb *callback) domain.InboundMessage {
	d := cb.Data
	from := d.FromUserName.String
	content := d.Content.String

	msg := domain.InboundMessage{
		ID:           domain.IDFromInt(d.NewMsgID),
		FromUserID:   from,
		ActualUserID: from,
		ToUserID:     d.ToUserName.String,
		CreateTime:   time.Unix(d.CreateTime, 0),
		IsGroup:      strings.HasSuffix(from, groupSuffix),
		Raw:          cb,
	}
	if d.NewMsgID == 0 {
		msg.ID = domain.IDFromInt(d.MsgID)
	}

	if msg.IsGroup {
		if sender, rest, found := strings.Cut(content, ":\n"); found && sender != "" {
			msg.ActualUserID = sender
			content = rest
		}
	}
	msg.Content = content
	msg.ActualUserName = pushName(d.PushContent)
	msg.MyMsg = cb.Wxid != "" && msg.ActualUserID == cb.Wxid

	switch {
	case isNonUser(from):
		msg.Type = domain.MessageNonUser
	default:
		msg.Type = messageType(d.MsgType)
	}
	return msg
}

func messageType(t int) domain.MessageType {
	switch t {
	case 1:
		return domain.MessageText
	case 3:
		return domain.MessageImage
	case 34:
		return domain.MessageVoice
	case 43:
		return domain.MessageVideo
	case 49:
		return domain.MessageApp
	case 51:
		return domain.MessageStatusSync
	}
	return domain.MessageUnknown
}

func isNonUser(id string) bool {
	return strings.HasPrefix(id, "gh_") || nonUserSenders[id]
}

// pushName takes the display name from a notification like "Alice : hi".
func pushName(push string) string {
	name, _, found := strings.Cut(push, " : ")
	if !found {
		return ""
	}
	return strings.TrimSpace(name)
}
