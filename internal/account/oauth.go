package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/Tiliavir/punch-clock/internal/model"
)

var defaultScopes = []string{"openid", "profile", "email", "offline_access"}

// userCacheTTL bounds how long a resolved bearer token is trusted without
// asking the identity provider again.
const userCacheTTL = 5 * time.Minute

func msEndpoint(tenantID, path string) string {
	return "https://login.microsoftonline.com/" + tenantID + "/oauth2/v2.0/" + path
}

// OAuthConfig configures the device-flow account provider. With only
// TenantID and ClientID set, Microsoft identity platform endpoints are used.
type OAuthConfig struct {
	TenantID      string
	ClientID      string
	DeviceAuthURL string
	TokenURL      string
	UserInfoURL   string
	Scopes        []string
	// TokenFile holds the signed-in token (default ~/.punch/auth/tokens.json).
	TokenFile string
}

// OAuth signs users in through the OAuth2 device authorization flow and
// resolves them through the provider's userinfo endpoint.
type OAuth struct {
	cfg    OAuthConfig
	oauth  *oauth2.Config
	client *resty.Client
	log    zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedUser
}

type cachedUser struct {
	user    model.User
	expires time.Time
}

// NewOAuth returns an OAuth provider for cfg.
func NewOAuth(cfg OAuthConfig, log zerolog.Logger) (*OAuth, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("oauth client id is not configured")
	}
	if cfg.TenantID != "" {
		if cfg.DeviceAuthURL == "" {
			cfg.DeviceAuthURL = msEndpoint(cfg.TenantID, "devicecode")
		}
		if cfg.TokenURL == "" {
			cfg.TokenURL = msEndpoint(cfg.TenantID, "token")
		}
		if cfg.UserInfoURL == "" {
			cfg.UserInfoURL = "https://graph.microsoft.com/oidc/userinfo"
		}
	}
	if cfg.UserInfoURL == "" {
		return nil, errors.New("oauth userinfo url is not configured")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaultScopes
	}
	if cfg.TokenFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfg.TokenFile = filepath.Join(home, ".punch", "auth", "tokens.json")
	}

	return &OAuth{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Scopes:   cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: cfg.DeviceAuthURL,
				TokenURL:      cfg.TokenURL,
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		},
		client: resty.New().
			SetHeader("Accept", "application/json").
			SetTimeout(10 * time.Second),
		log:   log.With().Str("component", "account").Logger(),
		now:   time.Now,
		cache: make(map[string]cachedUser),
	}, nil
}

// CurrentUser resolves the bearer token carried by ctx, or the signed-in
// token on disk when ctx carries none.
func (o *OAuth) CurrentUser(ctx context.Context) (model.User, error) {
	token, ok := TokenFrom(ctx)
	if !ok {
		tok, err := o.storedToken(ctx)
		if err != nil {
			return model.User{}, err
		}
		token = tok.AccessToken
	}
	return o.userInfo(ctx, token)
}

// Login runs the device flow, printing the verification instructions to out,
// and stores the resulting token.
func (o *OAuth) Login(ctx context.Context, out io.Writer) (model.User, error) {
	resp, err := o.oauth.DeviceAuth(ctx)
	if err != nil {
		return model.User{}, fmt.Errorf("device auth request failed: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "To sign in, use a web browser to open the page:")
	fmt.Fprintf(out, "  %s\n", resp.VerificationURI)
	fmt.Fprintf(out, "Enter the code: %s\n", resp.UserCode)
	fmt.Fprintln(out)

	tok, err := o.oauth.DeviceAccessToken(ctx, resp)
	if err != nil {
		return model.User{}, fmt.Errorf("device authentication failed: %w", err)
	}
	if err := o.saveToken(tok); err != nil {
		return model.User{}, err
	}
	return o.userInfo(ctx, tok.AccessToken)
}

// Logout forgets the stored token.
func (o *OAuth) Logout() error {
	err := os.Remove(o.cfg.TokenFile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

// storedToken loads the saved token and refreshes it when expired.
func (o *OAuth) storedToken(ctx context.Context) (*oauth2.Token, error) {
	tok, err := o.loadToken()
	if err != nil {
		o.log.Warn().Err(err).Msg("ignoring stored token")
		return nil, ErrNotAuthenticated
	}
	if tok == nil {
		return nil, ErrNotAuthenticated
	}
	if tok.Valid() {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}

	refreshed, err := o.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		o.log.Warn().Err(err).Msg("token refresh failed")
		return nil, fmt.Errorf("%w: token refresh failed", ErrNotAuthenticated)
	}
	if err := o.saveToken(refreshed); err != nil {
		o.log.Warn().Err(err).Msg("could not save refreshed token")
	}
	return refreshed, nil
}

type userInfoResponse struct {
	Sub               string `json:"sub"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
}

func (o *OAuth) userInfo(ctx context.Context, token string) (model.User, error) {
	o.mu.Lock()
	if c, ok := o.cache[token]; ok && o.now().Before(c.expires) {
		o.mu.Unlock()
		return c.user, nil
	}
	o.mu.Unlock()

	var info userInfoResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&info).
		Get(o.cfg.UserInfoURL)
	if err != nil {
		return model.User{}, fmt.Errorf("userinfo request: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.User{}, ErrNotAuthenticated
	default:
		return model.User{}, fmt.Errorf("userinfo status %d: %s", resp.StatusCode(), resp.String())
	}
	if info.Sub == "" {
		return model.User{}, fmt.Errorf("%w: userinfo response has no subject", ErrNotAuthenticated)
	}

	user := model.User{ID: info.Sub, Name: info.Name, Email: info.Email}
	if user.Email == "" {
		user.Email = info.PreferredUsername
	}

	o.mu.Lock()
	o.cache[token] = cachedUser{user: user, expires: o.now().Add(userCacheTTL)}
	o.mu.Unlock()
	return user, nil
}

// loadToken loads a previously saved token from disk; nil when none is saved.
func (o *OAuth) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(o.cfg.TokenFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (delete %s to re-authenticate): %w", o.cfg.TokenFile, err)
	}
	return &tok, nil
}

// saveToken persists a token to disk.
func (o *OAuth) saveToken(tok *oauth2.Token) error {
	path := o.cfg.TokenFile
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating auth directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving token file: %w", err)
	}
	return nil
}
