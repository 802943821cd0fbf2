package naver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/epik-app/go-auth/social"
)

const resultCodeSuccess = "00"

type profileEnvelope struct {
	ResultCode string        `json:"resultcode"`
	Message    string        `json:"message"`
	Response   *naverProfile `json:"response"`
}

type naverProfile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Name     string `json:"name"`
}

func decodeProfile(body []byte) (*social.Identity, error) {
	var env profileEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env.ResultCode != resultCodeSuccess {
		return nil, &social.ProviderError{
			Provider:  social.ProviderNaver,
			Operation: "user_info",
			Code:      env.ResultCode,
			Message:   env.Message,
		}
	}
	if env.Response == nil {
		return nil, fmt.Errorf("naver profile response is empty")
	}

	name := strings.TrimSpace(env.Response.Nickname)
	if name == "" {
		name = strings.TrimSpace(env.Response.Name)
	}
	return &social.Identity{
		Subject:     strings.TrimSpace(env.Response.ID),
		Email:       strings.TrimSpace(env.Response.Email),
		DisplayName: name,
	}, nil
}
