package gewe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GetToken asks the gateway to issue a new API token.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	res, err := c.postJSON(ctx, "/tools/getTokenId", struct{}{})
	if err != nil {
		return "", err
	}
	var token string
	if err := json.Unmarshal(res.Data, &token); err != nil || token == "" {
		return "", fmt.Errorf("%w: getTokenId returned no token", ErrProvider)
	}
	return token, nil
}

type setCallbackRequest struct {
	Token       string `json:"token" validate:"required"`
	CallbackURL string `json:"callbackUrl" validate:"required,url"`
}

// SetCallback registers the URL the gateway posts events to.
func (c *Client) SetCallback(ctx context.Context, token, callbackURL string) error {
	_, err := c.postJSON(ctx, "/tools/setCallback", setCallbackRequest{Token: token, CallbackURL: callbackURL})
	return err
}

type appRequest struct {
	AppID string `json:"appId"`
}

// CheckOnline reports whether the device behind appID is logged in.
func (c *Client) CheckOnline(ctx context.Context, appID string) (bool, error) {
	res, err := c.postJSON(ctx, "/login/checkOnline", appRequest{AppID: appID})
	if err != nil {
		return false, err
	}
	var online bool
	_ = json.Unmarshal(res.Data, &online)
	return online, nil
}

// QRCode is a pending login.
type QRCode struct {
	AppID       string `json:"appId"`
	QRData      string `json:"qrData"`
	QRImgBase64 string `json:"qrImgBase64"`
	UUID        string `json:"uuid"`
}

// GetLoginQRCode starts a login. An empty appID asks the gateway to
// allocate a new device.
func (c *Client) GetLoginQRCode(ctx context.Context, appID string) (*QRCode, error) {
	res, err := c.postJSON(ctx, "/login/getLoginQrCode", appRequest{AppID: appID})
	if err != nil {
		return nil, err
	}
	var qr QRCode
	if err := json.Unmarshal(res.Data, &qr); err != nil {
		return nil, fmt.Errorf("decoding qr code: %w", err)
	}
	return &qr, nil
}

// LoginStatus is the state of a pending login. Status 2 means logged in.
type LoginStatus struct {
	UUID        string `json:"uuid"`
	NickName    string `json:"nickName"`
	HeadImgURL  string `json:"headImgUrl"`
	ExpiredTime int    `json:"expiredTime"`
	Status      int    `json:"status"`
	LoginInfo   *struct {
		Wxid     string `json:"wxid"`
		NickName string `json:"nickName"`
	} `json:"loginInfo,omitempty"`
}

const loginStatusOK = 2

type checkLoginRequest struct {
	AppID string `json:"appId" validate:"required"`
	UUID  string `json:"uuid" validate:"required"`
}

// CheckLogin polls a pending login once.
func (c *Client) CheckLogin(ctx context.Context, appID, uuid string) (*LoginStatus, error) {
	res, err := c.postJSON(ctx, "/login/checkLogin", checkLoginRequest{AppID: appID, UUID: uuid})
	if err != nil {
		return nil, err
	}
	var st LoginStatus
	if err := json.Unmarshal(res.Data, &st); err != nil {
		return nil, fmt.Errorf("decoding login status: %w", err)
	}
	return &st, nil
}

// Login makes sure the device is online and returns its app id. When it is
// not, a QR code is logged and the login is polled until the user scans it.
// The returned id is also stored on the client.
func (c *Client) Login(ctx context.Context, appID string) (string, error) {
	if appID != "" {
		online, err := c.CheckOnline(ctx, appID)
		if err != nil {
			return "", fmt.Errorf("checking online: %w", err)
		}
		if online {
			c.SetAppID(appID)
			return appID, nil
		}
	}

	qr, err := c.GetLoginQRCode(ctx, appID)
	if err != nil {
		return "", fmt.Errorf("fetching login qr code: %w", err)
	}
	c.log.Info().Str("app_id", qr.AppID).Str("qr", qr.QRData).Msg("scan the QR code to log in")

	ticker := time.NewTicker(c.loginPoll)
	defer ticker.Stop()
	for i := 0; i < c.loginAttempts; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		st, err := c.CheckLogin(ctx, qr.AppID, qr.UUID)
		if err != nil {
			c.log.Warn().Err(err).Msg("check login failed")
			continue
		}
		if st.Status == loginStatusOK {
			nick := st.NickName
			if st.LoginInfo != nil && st.LoginInfo.NickName != "" {
				nick = st.LoginInfo.NickName
			}
			c.log.Info().Str("app_id", qr.AppID).Str("nick", nick).Msg("logged in")
			c.SetAppID(qr.AppID)
			return qr.AppID, nil
		}
	}
	return "", fmt.Errorf("login not confirmed after %d attempts", c.loginAttempts)
}

type postTextRequest struct {
	AppID   string `json:"appId" validate:"required"`
	ToWxid  string `json:"toWxid" validate:"required"`
	Content string `json:"content" validate:"required"`
	Ats     string `json:"ats,omitempty"`
}

// PostText sends a text message. ats is a comma separated list of wxids to
// mention in a group.
func (c *Client) PostText(ctx context.Context, to, content, ats string) (*Result, error) {
	return c.postJSON(ctx, "/message/postText", postTextRequest{AppID: c.AppID(), ToWxid: to, Content: content, Ats: ats})
}

type postImageRequest struct {
	AppID  string `json:"appId" validate:"required"`
	ToWxid string `json:"toWxid" validate:"required"`
	ImgURL string `json:"imgUrl" validate:"required,url"`
}

// PostImage sends the image the gateway will fetch from imgURL.
func (c *Client) PostImage(ctx context.Context, to, imgURL string) (*Result, error) {
	return c.postJSON(ctx, "/message/postImage", postImageRequest{AppID: c.AppID(), ToWxid: to, ImgURL: imgURL})
}

type postVoiceRequest struct {
	AppID         string `json:"appId" validate:"required"`
	ToWxid        string `json:"toWxid" validate:"required"`
	VoiceURL      string `json:"voiceUrl" validate:"required,url"`
	VoiceDuration int    `json:"voiceDuration" validate:"gt=0"`
}

// PostVoice sends a SILK voice note. durationMs is the playback length in
// milliseconds.
func (c *Client) PostVoice(ctx context.Context, to, voiceURL string, durationMs int) (*Result, error) {
	return c.postJSON(ctx, "/message/postVoice", postVoiceRequest{AppID: c.AppID(), ToWxid: to, VoiceURL: voiceURL, VoiceDuration: durationMs})
}

type postVideoRequest struct {
	AppID         string `json:"appId" validate:"required"`
	ToWxid        string `json:"toWxid" validate:"required"`
	VideoURL      string `json:"videoUrl" validate:"required,url"`
	ThumbURL      string `json:"thumbUrl" validate:"required,url"`
	VideoDuration int    `json:"videoDuration" validate:"gte=0"`
}

// PostVideo sends a video with its poster image. seconds is the length in
// whole seconds.
func (c *Client) PostVideo(ctx context.Context, to, videoURL, thumbURL string, seconds int) (*Result, error) {
	return c.postJSON(ctx, "/message/postVideo", postVideoRequest{AppID: c.AppID(), ToWxid: to, VideoURL: videoURL, ThumbURL: thumbURL, VideoDuration: seconds})
}

type postFileRequest struct {
	AppID    string `json:"appId" validate:"required"`
	ToWxid   string `json:"toWxid" validate:"required"`
	FileURL  string `json:"fileUrl" validate:"required,url"`
	FileName string `json:"fileName" validate:"required"`
}

// PostFile sends a file attachment.
func (c *Client) PostFile(ctx context.Context, to, fileURL, fileName string) (*Result, error) {
	return c.postJSON(ctx, "/message/postFile", postFileRequest{AppID: c.AppID(), ToWxid: to, FileURL: fileURL, FileName: fileName})
}

type postAppMsgRequest struct {
	AppID  string `json:"appId" validate:"required"`
	ToWxid string `json:"toWxid" validate:"required"`
	AppMsg string `json:"appmsg" validate:"required"`
}

// PostAppMessage sends a rich app message. appmsg is the raw XML payload.
func (c *Client) PostAppMessage(ctx context.Context, to, appmsg string) (*Result, error) {
	return c.postJSON(ctx, "/message/postAppMsg", postAppMsgRequest{AppID: c.AppID(), ToWxid: to, AppMsg: appmsg})
}
