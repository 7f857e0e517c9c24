package phonepe

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phonepe-service/internal/config"
	"phonepe-service/internal/models"
	"phonepe-service/internal/tokenstore"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStore(t *testing.T) *tokenstore.Store {
	t.Helper()
	key := sha256.Sum256([]byte("test-secret"))
	store, err := tokenstore.New(filepath.Join(t.TempDir(), "token.enc"), key[:])
	require.NoError(t, err)
	return store
}

// authServer counts token exchanges and serves the given response.
func authServer(t *testing.T, exchanges *int32, status int, body map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))

		atomic.AddInt32(exchanges, 1)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func tokenTestConfig(authURL string) *config.Config {
	return &config.Config{
		ClientID:      "client-id",
		ClientVersion: "1",
		ClientSecret:  "test-secret",
		AuthURL:       authURL,
	}
}

func TestTokenExchangeAndReuse(t *testing.T) {
	var exchanges int32
	server := authServer(t, &exchanges, http.StatusOK, map[string]interface{}{
		"access_token": "tok-1",
		"expires_in":   3600,
	})

	ts := NewTokenSource(tokenTestConfig(server.URL), newTestStore(t), testLogger())

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))

	// A valid token is served from memory, no second exchange.
	tok2, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tok, tok2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))
}

func TestTokenConcurrentRefreshSingleFlight(t *testing.T) {
	var exchanges int32
	server := authServer(t, &exchanges, http.StatusOK, map[string]interface{}{
		"access_token": "tok-1",
		"expires_in":   3600,
	})

	ts := NewTokenSource(tokenTestConfig(server.URL), newTestStore(t), testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := ts.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok-1", tok.AccessToken)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))
}

func TestTokenUsesDurableCache(t *testing.T) {
	var exchanges int32
	server := authServer(t, &exchanges, http.StatusOK, map[string]interface{}{
		"access_token": "tok-live",
		"expires_in":   3600,
	})

	store := newTestStore(t)
	require.NoError(t, store.Save(&models.Token{
		AccessToken: "tok-cached",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	// Simulates a fresh process: memory is empty but the cache file is warm.
	ts := NewTokenSource(tokenTestConfig(server.URL), store, testLogger())

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-cached", tok.AccessToken)
	assert.Equal(t, int32(0), atomic.LoadInt32(&exchanges))
}

func TestTokenIgnoresExpiringCache(t *testing.T) {
	var exchanges int32
	server := authServer(t, &exchanges, http.StatusOK, map[string]interface{}{
		"access_token": "tok-live",
		"expires_in":   3600,
	})

	store := newTestStore(t)
	require.NoError(t, store.Save(&models.Token{
		AccessToken: "tok-stale",
		ExpiresAt:   time.Now().Add(30 * time.Second), // inside the safety margin
	}))

	ts := NewTokenSource(tokenTestConfig(server.URL), store, testLogger())

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-live", tok.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))
}

func TestTokenPersistsAfterExchange(t *testing.T) {
	var exchanges int32
	server := authServer(t, &exchanges, http.StatusOK, map[string]interface{}{
		"access_token": "tok-1",
		"expires_in":   3600,
	})

	store := newTestStore(t)
	ts := NewTokenSource(tokenTestConfig(server.URL), store, testLogger())

	_, err := ts.Token(context.Background())
	require.NoError(t, err)

	cached, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "tok-1", cached.AccessToken)
}

func TestTokenDefaultExpiry(t *testing.T) {
	var exchanges int32
	server := authServer(t, &exchanges, http.StatusOK, map[string]interface{}{
		"access_token": "tok-1",
	})

	ts := NewTokenSource(tokenTestConfig(server.URL), newTestStore(t), testLogger())

	before := time.Now()
	tok, err := ts.Token(context.Background())
	require.NoError(t, err)

	assert.WithinDuration(t, before.Add(time.Hour), tok.ExpiresAt, 5*time.Second)
}

func TestTokenExchangeFailure(t *testing.T) {
	var exchanges int32
	server := authServer(t, &exchanges, http.StatusUnauthorized, map[string]interface{}{
		"message": "Bad credentials",
	})

	ts := NewTokenSource(tokenTestConfig(server.URL), newTestStore(t), testLogger())

	_, err := ts.Token(context.Background())
	require.Error(t, err)

	var authErr *models.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestTokenMissingAccessToken(t *testing.T) {
	var exchanges int32
	server := authServer(t, &exchanges, http.StatusOK, map[string]interface{}{
		"expires_in": 3600,
	})

	ts := NewTokenSource(tokenTestConfig(server.URL), newTestStore(t), testLogger())

	_, err := ts.Token(context.Background())
	require.Error(t, err)

	var authErr *models.AuthError
	require.True(t, errors.As(err, &authErr))
}

func TestTokenValidFor(t *testing.T) {
	var nilToken *models.Token
	assert.False(t, nilToken.ValidFor(TokenSafetyMargin))
	assert.False(t, (&models.Token{}).ValidFor(TokenSafetyMargin))
	assert.False(t, (&models.Token{
		AccessToken: "abc",
		ExpiresAt:   time.Now().Add(TokenSafetyMargin / 2),
	}).ValidFor(TokenSafetyMargin))
	assert.True(t, (&models.Token{
		AccessToken: "abc",
		ExpiresAt:   time.Now().Add(time.Hour),
	}).ValidFor(TokenSafetyMargin))
}
