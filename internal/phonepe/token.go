package phonepe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"phonepe-service/internal/config"
	"phonepe-service/internal/models"
	"phonepe-service/internal/tokenstore"
)

// TokenSafetyMargin is how much lifetime a token must have left to be handed
// to a caller. A request started just before expiry must still complete with
// a valid credential.
const TokenSafetyMargin = 120 * time.Second

const defaultExpiresIn = 3600 // seconds, when the gateway omits expires_in

// TokenSource obtains and refreshes the OAuth2 client-credentials token.
//
// Refresh is single-flight: the mutex serializes callers, and a caller that
// waited out another refresh finds the fresh token in the cache instead of
// performing a second redundant exchange. No retry is done here; an AuthError
// is returned and the next request tries again.
type TokenSource struct {
	cfg        *config.Config
	store      *tokenstore.Store
	httpClient *http.Client
	log        *logrus.Entry

	mu      sync.Mutex
	current *models.Token
}

// NewTokenSource creates a token source backed by the given encrypted store.
func NewTokenSource(cfg *config.Config, store *tokenstore.Store, logger *logrus.Logger) *TokenSource {
	return &TokenSource{
		cfg:        cfg,
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.WithField("component", "phonepe.token"),
	}
}

// Token returns a credential valid beyond the safety margin, performing at
// most one exchange no matter how many callers arrive concurrently.
func (ts *TokenSource) Token(ctx context.Context) (*models.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.current.ValidFor(TokenSafetyMargin) {
		return ts.current, nil
	}

	// A restart or another process may have refreshed the durable cache.
	if cached, _ := ts.store.Load(); cached.ValidFor(TokenSafetyMargin) {
		ts.current = cached
		return cached, nil
	}

	tok, err := ts.exchange(ctx)
	if err != nil {
		return nil, err
	}

	if err := ts.store.Save(tok); err != nil {
		// The token is still usable for this process; losing the durable
		// cache only costs an extra exchange after a restart.
		ts.log.WithError(err).Warn("failed to persist token cache")
	}
	ts.current = tok
	return tok, nil
}

// exchange performs the OAuth2 client-credentials grant.
func (ts *TokenSource) exchange(ctx context.Context) (*models.Token, error) {
	form := url.Values{}
	form.Set("client_id", ts.cfg.ClientID)
	form.Set("client_version", ts.cfg.ClientVersion)
	form.Set("client_secret", ts.cfg.ClientSecret)
	form.Set("grant_type", "client_credentials")

	endpoint := ts.cfg.AuthURL + "/v1/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &models.AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return nil, &models.AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.AuthError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		ts.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
		}).Error("token exchange failed")
		return nil, &models.AuthError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("token endpoint returned %s", resp.Status),
		}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &models.AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse token response: %w", err)}
	}
	if payload.AccessToken == "" {
		return nil, &models.AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("token response missing access_token")}
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	tok := &models.Token{
		AccessToken: payload.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	ts.log.WithField("expires_at", tok.ExpiresAt).Info("obtained new access token")
	return tok, nil
}
