package bangumi

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"gopkg.in/guregu/null.v3"

	"animebingo.dev/backend-next/internal/model"
)

// avatarSizes is the preference order of the avatar variants.
var avatarSizes = []string{"avatar.large", "avatar.medium", "avatar.small"}

// User fetches the public profile of username.
func (c *Client) User(ctx context.Context, username string, credential null.String) (*model.UserInfo, error) {
	body, err := c.send(ctx, request{
		op:         "user",
		method:     http.MethodGet,
		path:       "/v0/users/" + url.PathEscape(username),
		credential: credential,
	})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("bangumi: user: invalid json response")
	}
	return parseUser(username, body), nil
}

func parseUser(username string, body []byte) *model.UserInfo {
	res := gjson.ParseBytes(body)

	info := &model.UserInfo{
		Username: username,
		Nickname: res.Get("nickname").String(),
	}
	if u := res.Get("username").String(); u != "" {
		info.Username = u
	}
	for _, path := range avatarSizes {
		if v := res.Get(path).String(); v != "" {
			info.AvatarURL = null.StringFrom(v)
			break
		}
	}
	return info
}

// Avatar downloads the image at avatarURL and returns it as a data URI.
func (c *Client) Avatar(ctx context.Context, avatarURL string) (string, error) {
	body, err := c.send(ctx, request{
		op:     "avatar",
		method: http.MethodGet,
		url:    avatarURL,
	})
	if err != nil {
		return "", err
	}

	mime := mimetype.Detect(body)
	if !mime.Is("image/jpeg") && !mime.Is("image/png") && !mime.Is("image/gif") && !mime.Is("image/webp") {
		return "", errors.Errorf("bangumi: avatar: unexpected content type %s", mime.String())
	}

	return "data:" + mime.String() + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}
