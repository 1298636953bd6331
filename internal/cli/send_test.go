package cli

import (
	"testing"

	"github.com/soyeahso/gewebridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendFlagsReply(t *testing.T) {
	r, err := sendFlags{text: "hi"}.reply()
	require.NoError(t, err)
	assert.Equal(t, domain.TextReply("hi"), r)

	r, err = sendFlags{voice: "/tmp/a.mp3"}.reply()
	require.NoError(t, err)
	assert.Equal(t, domain.ReplyVoice, r.Kind)

	r, err = sendFlags{videoURL: "https://cdn.example.com/v.mp4"}.reply()
	require.NoError(t, err)
	assert.Equal(t, domain.ReplyVideoURL, r.Kind)
}

func TestSendFlagsRequireExactlyOne(t *testing.T) {
	_, err := sendFlags{}.reply()
	assert.Error(t, err)

	_, err = sendFlags{text: "hi", app: "<appmsg/>"}.reply()
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, 9919, parseValue("9919"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, "http://127.0.0.1:2531/v2/api", parseValue("http://127.0.0.1:2531/v2/api"))
}
