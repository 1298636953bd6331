package domain

import (
	"strconv"
	"time"
)

// MessageType classifies an inbound event after webhook decoding.
type MessageType string

const (
	MessageText       MessageType = "text"
	MessageImage      MessageType = "image"
	MessageVoice      MessageType = "voice"
	MessageVideo      MessageType = "video"
	MessageApp        MessageType = "app"
	MessageStatusSync MessageType = "status_sync"
	MessageNonUser    MessageType = "non_user"
	MessageUnknown    MessageType = "unknown"
)

// InboundMessage is a message received from the gateway callback.
type InboundMessage struct {
	ID             string      `json:"id"`
	Type           MessageType `json:"type"`
	Content        string      `json:"content"`
	IsGroup        bool        `json:"isGroup"`
	FromUserID     string      `json:"fromUserId"`     // chat id: the contact, or the room for groups
	ActualUserID   string      `json:"actualUserId"`   // the person who wrote it
	ActualUserName string      `json:"actualUserName,omitempty"`
	ToUserID       string      `json:"toUserId"`
	CreateTime     time.Time   `json:"createTime"`
	MyMsg          bool        `json:"myMsg,omitempty"`
	Raw            any         `json:"raw,omitempty"`
}

// Expired reports whether the message is older than maxAge at now.
func (m InboundMessage) Expired(now time.Time, maxAge time.Duration) bool {
	return m.CreateTime.Before(now.Add(-maxAge))
}

// IDFromInt formats a numeric gateway message id.
func IDFromInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
