// Package auth issues and validates the API keys integration clients use
// against the HTTP surface. Keys are ppy_<id>.<secret>; only a bcrypt hash
// of the secret ever reaches the database.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/propply/backend/internal/database"
)

const keyPrefix = "ppy_"

// KeyStore is the persistence surface for API keys.
// *database.SupabaseClient satisfies it.
type KeyStore interface {
	GetAPIKey(ctx context.Context, keyID string) (*database.APIKey, error)
	CreateAPIKey(ctx context.Context, apiKey *database.APIKey) error
	TouchAPIKeyUsage(ctx context.Context, keyID string, usedAt time.Time) error
}

// APIKeyManager creates and validates API keys against the store.
type APIKeyManager struct {
	store KeyStore
}

// NewAPIKeyManager creates a new API key manager.
func NewAPIKeyManager(store KeyStore) *APIKeyManager {
	return &APIKeyManager{store: store}
}

// CreateAPIKey creates a new API key with format: ppy_<id>.<secret>.
// The full key is returned exactly once; only the secret's hash is stored.
func (m *APIKeyManager) CreateAPIKey(ctx context.Context, name string, scopes []string, expiresAt *time.Time) (*database.APIKey, string, error) {
	// Generate Key ID (public)
	idBytes := make([]byte, 8)
	rand.Read(idBytes)
	keyID := hex.EncodeToString(idBytes) // 16 chars

	// Generate Secret (private)
	secretBytes := make([]byte, 24)
	rand.Read(secretBytes)
	secret := hex.EncodeToString(secretBytes) // 48 chars

	fullKey := fmt.Sprintf("%s%s.%s", keyPrefix, keyID, secret)

	// We hash ONLY the secret part. The ID is used for lookup.
	secretHash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	apiKey := &database.APIKey{
		KeyID:     keyID,
		Name:      name,
		KeyHash:   string(secretHash),
		Scopes:    scopes,
		IsActive:  true,
		ExpiresAt: expiresAt,
	}

	if err := m.store.CreateAPIKey(ctx, apiKey); err != nil {
		return nil, "", err
	}

	return apiKey, fullKey, nil
}

// ValidateAPIKey checks a presented key and returns its record.
// Key Format: ppy_<key_id>.<secret>
func (m *APIKeyManager) ValidateAPIKey(ctx context.Context, fullKey string) (*database.APIKey, error) {
	if !strings.HasPrefix(fullKey, keyPrefix) {
		return nil, errors.New("invalid key format")
	}
	parts := strings.Split(strings.TrimPrefix(fullKey, keyPrefix), ".")
	if len(parts) != 2 {
		return nil, errors.New("invalid key format")
	}

	keyID := parts[0]
	secret := parts[1]

	// Lookup by KeyID
	apiKey, err := m.store.GetAPIKey(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("lookup failed: %w", err)
	}
	if apiKey == nil {
		return nil, errors.New("invalid api key")
	}

	// Validate Secret
	if err := bcrypt.CompareHashAndPassword([]byte(apiKey.KeyHash), []byte(secret)); err != nil {
		return nil, errors.New("invalid api key secret")
	}

	// Check Active & Expiry
	if !apiKey.IsActive {
		return nil, errors.New("api key inactive")
	}
	if apiKey.ExpiresAt != nil && time.Now().After(*apiKey.ExpiresAt) {
		return nil, errors.New("api key expired")
	}

	// Best effort; validation already succeeded.
	if err := m.store.TouchAPIKeyUsage(ctx, keyID, time.Now()); err == nil {
		now := time.Now()
		apiKey.LastUsedAt = &now
	}

	return apiKey, nil
}

// ============================================================================
// CONTEXT HELPERS
// ============================================================================

type contextKey string

const apiKeyContextKey contextKey = "api_key"

// WithAPIKey adds a validated API key record to the context
func WithAPIKey(ctx context.Context, key *database.APIKey) context.Context {
	return context.WithValue(ctx, apiKeyContextKey, key)
}

// APIKeyFromContext extracts the validated API key record, if any
func APIKeyFromContext(ctx context.Context) (*database.APIKey, bool) {
	key, ok := ctx.Value(apiKeyContextKey).(*database.APIKey)
	return key, ok
}
