package account_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/Tiliavir/punch-clock/internal/account"
	"github.com/Tiliavir/punch-clock/internal/model"
)

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()
	_, err := account.Static{}.CurrentUser(ctx)
	assert.ErrorIs(t, err, account.ErrNotAuthenticated)

	u := model.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}
	got, err := account.Static{User: u}.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestTokenContext(t *testing.T) {
	_, ok := account.TokenFrom(context.Background())
	assert.False(t, ok)
	tok, ok := account.TokenFrom(account.WithToken(context.Background(), "abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
}

// userInfoServer accepts the bearer token "good" only.
func userInfoServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sub":                "user-42",
			"name":               "Grace",
			"preferred_username": "grace@example.com",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newOAuth(t *testing.T, userInfoURL string) (*account.OAuth, string) {
	t.Helper()
	tokenFile := filepath.Join(t.TempDir(), "auth", "tokens.json")
	p, err := account.NewOAuth(account.OAuthConfig{
		ClientID:      "client",
		DeviceAuthURL: "http://127.0.0.1:0/device",
		TokenURL:      "http://127.0.0.1:0/token",
		UserInfoURL:   userInfoURL,
		TokenFile:     tokenFile,
	}, zerolog.Nop())
	require.NoError(t, err)
	return p, tokenFile
}

func TestOAuthResolvesBearerToken(t *testing.T) {
	var hits int32
	srv := userInfoServer(t, &hits)
	p, _ := newOAuth(t, srv.URL)

	ctx := account.WithToken(context.Background(), "good")
	u, err := p.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.User{ID: "user-42", Name: "Grace", Email: "grace@example.com"}, u)

	// Second lookup is served from the cache.
	_, err = p.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestOAuthRejectsBadToken(t *testing.T) {
	var hits int32
	srv := userInfoServer(t, &hits)
	p, _ := newOAuth(t, srv.URL)

	_, err := p.CurrentUser(account.WithToken(context.Background(), "bad"))
	assert.ErrorIs(t, err, account.ErrNotAuthenticated)
}

func TestOAuthWithoutStoredToken(t *testing.T) {
	var hits int32
	srv := userInfoServer(t, &hits)
	p, _ := newOAuth(t, srv.URL)

	_, err := p.CurrentUser(context.Background())
	assert.ErrorIs(t, err, account.ErrNotAuthenticated)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestOAuthUsesStoredToken(t *testing.T) {
	var hits int32
	srv := userInfoServer(t, &hits)
	p, tokenFile := newOAuth(t, srv.URL)

	tok := oauth2.Token{AccessToken: "good", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	data, err := json.Marshal(tok)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(tokenFile), 0o700))
	require.NoError(t, os.WriteFile(tokenFile, data, 0o600))

	u, err := p.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-42", u.ID)

	require.NoError(t, p.Logout())
	_, err = os.Stat(tokenFile)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, p.Logout(), "logout twice is fine")
}

func TestOAuthCorruptTokenFile(t *testing.T) {
	var hits int32
	srv := userInfoServer(t, &hits)
	p, tokenFile := newOAuth(t, srv.URL)
	require.NoError(t, os.MkdirAll(filepath.Dir(tokenFile), 0o700))
	require.NoError(t, os.WriteFile(tokenFile, []byte("{not json"), 0o600))

	_, err := p.CurrentUser(context.Background())
	assert.ErrorIs(t, err, account.ErrNotAuthenticated)
}

func TestNewOAuthRequiresClientID(t *testing.T) {
	_, err := account.NewOAuth(account.OAuthConfig{UserInfoURL: "http://x"}, zerolog.Nop())
	assert.Error(t, err)
}
