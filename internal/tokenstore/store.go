// Package tokenstore persists the PhonePe bearer token encrypted at rest.
//
// The cache is a single file holding a ChaCha20-Poly1305 sealed JSON blob.
// Anything that fails to decrypt or deserialize is treated as an empty cache:
// the bad file is removed and the next Save recreates it. Only Save errors are
// surfaced; Load never fails the caller into an error path.
package tokenstore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"

	"phonepe-service/internal/models"
)

// Store is a durable, encrypted cache for the current token.
type Store struct {
	path string
	aead cipher.AEAD
}

// New creates a token store writing to path, sealed with the given 32-byte key.
func New(path string, key []byte) (*Store, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("tokenstore: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, aead: aead}, nil
}

// Load returns the cached token, or (nil, nil) when the cache is absent,
// corrupt, or undecryptable. A bad cache file is deleted so the next Save
// starts clean. Unreadable storage degrades to "no token" rather than failing
// auth.
func (s *Store) Load() (*models.Token, error) {
	blob, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil
	}

	tok, err := s.open(blob)
	if err != nil {
		os.Remove(s.path)
		return nil, nil
	}
	return tok, nil
}

// Save encrypts and persists the token, replacing any previous content
// atomically. The file is restricted to the owning process (0600).
func (s *Store) Save(tok *models.Token) error {
	plaintext, err := json.Marshal(tok)
	if err != nil {
		return &models.StorageError{Op: "encode token", Err: err}
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return &models.StorageError{Op: "generate nonce", Err: err}
	}
	sealed := s.aead.Seal(nonce, nonce, plaintext, nil)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &models.StorageError{Op: "create cache dir", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return &models.StorageError{Op: "create temp file", Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return &models.StorageError{Op: "chmod temp file", Err: err}
	}
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return &models.StorageError{Op: "write token", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &models.StorageError{Op: "close temp file", Err: err}
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return &models.StorageError{Op: "replace token cache", Err: err}
	}
	return nil
}

func (s *Store) open(blob []byte) (*models.Token, error) {
	if len(blob) < s.aead.NonceSize() {
		return nil, errors.New("cache blob too short")
	}
	nonce, ciphertext := blob[:s.aead.NonceSize()], blob[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, err
	}
	var tok models.Token
	if err := json.Unmarshal(plaintext, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, errors.New("empty access token in cache")
	}
	return &tok, nil
}
