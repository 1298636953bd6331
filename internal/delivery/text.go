package delivery

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/soyeahso/gewebridge/internal/domain"
)

func (p *Pipeline) sendText(ctx context.Context, content string, target domain.DeliveryTarget) Result {
	if content == "" {
		return fail(FailureInvalid, fmt.Errorf("%w: empty text", ErrInvalidReply))
	}
	if _, err := p.provider.PostText(ctx, target.Receiver, content, mentionFor(target)); err != nil {
		return providerFailure("post text", err)
	}
	return ok()
}

// mentionFor returns the wxid to @ in the reply. Only replies to group
// messages mention anyone.
func mentionFor(t domain.DeliveryTarget) string {
	if t.Origin == nil {
		return t.Mention
	}
	if !t.Origin.IsGroup {
		return ""
	}
	if t.Mention != "" {
		return t.Mention
	}
	return t.Origin.ActualUserID
}

func (p *Pipeline) sendApp(ctx context.Context, payload string, target domain.DeliveryTarget) Result {
	if err := checkXML(payload); err != nil {
		return fail(FailureInvalid, fmt.Errorf("%w: app message: %v", ErrInvalidReply, err))
	}
	if _, err := p.provider.PostAppMessage(ctx, target.Receiver, payload); err != nil {
		return providerFailure("post app message", err)
	}
	return ok()
}

// checkXML accepts a non-empty, well-formed document with at least one
// element.
func checkXML(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("empty payload")
	}
	dec := xml.NewDecoder(strings.NewReader(s))
	elements := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			elements++
		}
	}
	if elements == 0 {
		return errors.New("no xml element")
	}
	return nil
}
