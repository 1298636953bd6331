package domain

// DeliveryTarget addresses a single send.
type DeliveryTarget struct {
	Receiver string          `validate:"required"`
	Mention  string          // set only for replies to group messages
	Origin   *InboundMessage // used only to decide mention behavior
}

// NewTarget builds the target for replying to msg: the reply goes to the
// chat the message came from, mentioning the sender when it was a group.
func NewTarget(msg *InboundMessage) DeliveryTarget {
	t := DeliveryTarget{Receiver: msg.FromUserID, Origin: msg}
	if msg.IsGroup {
		t.Mention = msg.ActualUserID
	}
	return t
}

// DirectTarget addresses a receiver with no originating message.
func DirectTarget(receiver string) DeliveryTarget {
	return DeliveryTarget{Receiver: receiver}
}
