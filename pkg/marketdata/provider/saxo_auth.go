package provider

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// tokenExpiryMargin refreshes tokens slightly before they expire.
const tokenExpiryMargin = 30 * time.Second

// SaxoToken is the persisted OAuth2 token set.
type SaxoToken struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (t SaxoToken) accessValid(now time.Time) bool {
	return t.AccessToken != "" && now.Add(tokenExpiryMargin).Before(t.ExpiresAt)
}

func (t SaxoToken) refreshValid(now time.Time) bool {
	return t.RefreshToken != "" && (t.RefreshExpiresAt.IsZero() || now.Before(t.RefreshExpiresAt))
}

type saxoTokenResponse struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int    `json:"expires_in"`
	RefreshTokenExpiresIn int    `json:"refresh_token_expires_in"`
}

type saxoOAuthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// ensureToken makes sure a usable access token is held, refreshing or running the
// authorization code flow as needed.
func (c *SaxoClient) ensureToken(ctx context.Context) error {
	now := c.now()
	if c.token.accessValid(now) {
		return nil
	}

	if c.token.refreshValid(now) {
		err := c.requestToken(ctx, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {c.token.RefreshToken},
			"redirect_uri":  {c.cfg.RedirectURI},
		})
		if err == nil {
			return nil
		}

		c.logger.Warn("Saxo token refresh failed, starting authorization", zap.Error(err))
	}

	code, err := c.authorize(ctx)
	if err != nil {
		return err
	}

	return c.requestToken(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.cfg.RedirectURI},
	})
}

// authorize serves the OAuth redirect on CallbackAddr and waits for the authorization code.
func (c *SaxoClient) authorize(ctx context.Context) (string, error) {
	state, err := randomState()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeAuthFailed, "failed to generate OAuth state", err)
	}

	ln, err := net.Listen("tcp", c.cfg.CallbackAddr)
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeConnectionFailed, err, "failed to listen for OAuth callback on %s", c.cfg.CallbackAddr)
	}

	type result struct {
		code string
		err  error
	}

	results := make(chan result, 1)

	router := mux.NewRouter()
	router.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var res result

		switch {
		case q.Get("state") != state:
			res.err = errors.New(errors.ErrCodeAuthFailed, "OAuth callback state mismatch")
		case q.Get("error") != "":
			res.err = errors.Newf(errors.ErrCodeAuthFailed, "authorization denied: %s", q.Get("error"))
		case q.Get("code") == "":
			res.err = errors.New(errors.ErrCodeAuthFailed, "OAuth callback without code")
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			_, _ = w.Write([]byte("Authorization complete. You can close this window."))
		}

		select {
		case results <- res:
		default:
		}
	}).Methods(http.MethodGet)

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			c.logger.Error("OAuth callback server failed", zap.Error(err))
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := c.cfg.AuthURL + "?" + url.Values{
		"response_type": {"code"},
		"client_id":     {c.cfg.ClientID},
		"redirect_uri":  {c.cfg.RedirectURI},
		"state":         {state},
	}.Encode()

	c.onAuthorize(authURL)

	select {
	case <-ctx.Done():
		return "", errors.Wrap(errors.ErrCodeAuthFailed, "authorization cancelled", ctx.Err())
	case res := <-results:
		return res.code, res.err
	}
}

func (c *SaxoClient) requestToken(ctx context.Context, form url.Values) error {
	var (
		tokenResp saxoTokenResponse
		oauthErr  saxoOAuthError
	)

	resp, err := c.client.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret).
		SetFormDataFromValues(form).
		SetResult(&tokenResp).
		SetError(&oauthErr).
		Post(c.cfg.TokenURL)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConnectionFailed, "failed to reach Saxo token endpoint", err)
	}

	if resp.IsError() || tokenResp.AccessToken == "" {
		return errors.Newf(errors.ErrCodeAuthFailed, "token request rejected (%s): %s %s", resp.Status(), oauthErr.Error, oauthErr.Description)
	}

	now := c.now()
	c.token = SaxoToken{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}

	if tokenResp.RefreshTokenExpiresIn > 0 {
		c.token.RefreshExpiresAt = now.Add(time.Duration(tokenResp.RefreshTokenExpiresIn) * time.Second)
	}

	if err := c.saveToken(); err != nil {
		c.logger.Warn("Failed to persist Saxo token", zap.String("path", c.cfg.TokenFile), zap.Error(err))
	}

	return nil
}

func (c *SaxoClient) loadToken() {
	if c.cfg.TokenFile == "" {
		return
	}

	data, err := os.ReadFile(c.cfg.TokenFile)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("Failed to read Saxo token file", zap.String("path", c.cfg.TokenFile), zap.Error(err))
		}

		return
	}

	var token SaxoToken
	if err := json.Unmarshal(data, &token); err != nil {
		c.logger.Warn("Ignoring malformed Saxo token file", zap.String("path", c.cfg.TokenFile), zap.Error(err))

		return
	}

	c.token = token
}

func (c *SaxoClient) saveToken() error {
	if c.cfg.TokenFile == "" {
		return nil
	}

	data, err := json.MarshalIndent(c.token, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.cfg.TokenFile), 0o755); err != nil {
		return err
	}

	tmp := c.cfg.TokenFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, c.cfg.TokenFile)
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
