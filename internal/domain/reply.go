package domain

import (
	"io"
)

// ReplyKind tags the payload carried by a Reply.
type ReplyKind string

const (
	ReplyText     ReplyKind = "text"
	ReplyError    ReplyKind = "error"
	ReplyInfo     ReplyKind = "info"
	ReplyVoice    ReplyKind = "voice"     // Content is a local MP3 path
	ReplyImage    ReplyKind = "image"     // Body is the image stream
	ReplyImageURL ReplyKind = "image_url" // Content is a remote URL
	ReplyVideoURL ReplyKind = "video_url" // Content is a URL or path readable by ffmpeg
	ReplyApp      ReplyKind = "app"       // Content is an appmsg XML document
)

// Valid reports whether k is one of the known kinds.
func (k ReplyKind) Valid() bool {
	switch k {
	case ReplyText, ReplyError, ReplyInfo, ReplyVoice, ReplyImage, ReplyImageURL, ReplyVideoURL, ReplyApp:
		return true
	}
	return false
}

// Textual reports whether the kind is delivered as a plain text message.
func (k ReplyKind) Textual() bool {
	return k == ReplyText || k == ReplyError || k == ReplyInfo
}

// Reply is an outbound message produced by the responder. Content holds
// strings (text, paths, URLs, XML); Body holds binary image streams.
type Reply struct {
	Kind    ReplyKind
	Content string
	Body    io.ReadCloser
}

func TextReply(s string) Reply     { return Reply{Kind: ReplyText, Content: s} }
func ErrorReply(s string) Reply    { return Reply{Kind: ReplyError, Content: s} }
func InfoReply(s string) Reply     { return Reply{Kind: ReplyInfo, Content: s} }
func VoiceReply(path string) Reply { return Reply{Kind: ReplyVoice, Content: path} }
func ImageURLReply(u string) Reply { return Reply{Kind: ReplyImageURL, Content: u} }
func VideoURLReply(u string) Reply { return Reply{Kind: ReplyVideoURL, Content: u} }
func AppReply(xml string) Reply    { return Reply{Kind: ReplyApp, Content: xml} }

// ImageReply wraps an image stream. The pipeline closes it.
func ImageReply(body io.ReadCloser) Reply {
	return Reply{Kind: ReplyImage, Body: body}
}
