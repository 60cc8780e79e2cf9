package oauth2

import (
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleOAuth2 struct {
	*BaseOAuth2
}

func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) (*GoogleOAuth2, error) {
	base, err := NewBaseOAuth2("google", clientId, clientSecret, callbackUrl, handleUser)
	if err != nil {
		return nil, err
	}
	base.UserInfoURL = googleUserInfoURL
	base.oauthConfig.Endpoint = google.Endpoint
	base.oauthConfig.Scopes = []string{
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
	}
	return &GoogleOAuth2{BaseOAuth2: base}, nil
}
