package oauth2

import (
	"golang.org/x/oauth2/github"
)

type GithubOAuth2 struct {
	*BaseOAuth2
}

func NewGithubOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) (*GithubOAuth2, error) {
	base, err := NewBaseOAuth2("github", clientId, clientSecret, callbackUrl, handleUser)
	if err != nil {
		return nil, err
	}
	base.UserInfoURL = "https://api.github.com/user"
	base.oauthConfig.Endpoint = github.Endpoint
	base.oauthConfig.Scopes = []string{
		"read:user", "user:email",
	}
	return &GithubOAuth2{BaseOAuth2: base}, nil
}
