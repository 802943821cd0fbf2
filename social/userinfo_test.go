package social_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	auth "github.com/epik-app/go-auth"
	"github.com/epik-app/go-auth/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeFlat(body []byte) (*social.Identity, error) {
	var payload struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Fail  bool   `json:"fail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Fail {
		return nil, errors.New("provider reported failure")
	}
	return &social.Identity{Subject: payload.ID, Email: payload.Email}, nil
}

func userInfoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newUserInfo(url string) *social.UserInfoVerifier {
	return social.NewUserInfoVerifier(social.UserInfoConfig{
		Name:   social.ProviderNaver,
		URL:    url,
		Issuer: "https://nid.example.com",
		Decode: decodeFlat,
	})
}

func TestUserInfoVerifier_Success(t *testing.T) {
	srv := userInfoServer(t, http.StatusOK, `{"id":"n-1","email":"n@example.com"}`)

	identity, err := newUserInfo(srv.URL).Verify(context.Background(), " good-token ")
	require.NoError(t, err)
	assert.Equal(t, social.ProviderNaver, identity.Provider)
	assert.Equal(t, "https://nid.example.com", identity.Issuer)
	assert.Equal(t, "n-1", identity.Subject)
	assert.Equal(t, "n@example.com", identity.Email)
}

func TestUserInfoVerifier_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		token    string
		textCode string
		http     int
	}{
		{"blank token", http.StatusOK, `{}`, "  ", auth.TextCodeInvalidInput, http.StatusBadRequest},
		{"rejected token", http.StatusOK, `{}`, "bad-token", social.TextCodeSocialToken, http.StatusUnauthorized},
		{"server error", http.StatusInternalServerError, `oops`, "good-token", social.TextCodeProviderAPI, http.StatusBadGateway},
		{"application failure", http.StatusOK, `{"fail":true}`, "good-token", social.TextCodeUserInfoFail, 0},
		{"not json", http.StatusOK, `<html>`, "good-token", social.TextCodeUserInfoFail, 0},
		{"missing subject", http.StatusOK, `{"email":"x@example.com"}`, "good-token", social.TextCodeUserInfoFail, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := userInfoServer(t, tt.status, tt.body)
			_, err := newUserInfo(srv.URL).Verify(context.Background(), tt.token)
			require.Error(t, err)
			assert.Equal(t, tt.textCode, auth.TextCodeOf(err))
			if tt.http != 0 {
				assert.Equal(t, tt.http, auth.HTTPStatus(err))
			}
		})
	}
}

func TestUserInfoVerifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newUserInfo(url).Verify(context.Background(), "good-token")
	require.Error(t, err)
	assert.Equal(t, social.TextCodeProviderDown, auth.TextCodeOf(err))
}
