package phi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
)

// devIndexKey keys blind indexes when no encryption key is configured, so
// that lookups keep working in development.
var devIndexKey = []byte("medapp-development-blind-index")

// Service bundles the configured encryptor with the blind-index key derived
// from the same master key.
type Service struct {
	encryptor FieldEncryptor
	indexKey  []byte
}

// NewService builds the PHI service from a 64-char hex key. An empty key
// disables encryption (development) and logs a warning.
func NewService(hexKey string, logger zerolog.Logger) (*Service, error) {
	if hexKey == "" {
		logger.Warn().Msg("PHI encryption disabled: PHI_ENCRYPTION_KEY is not set")
		return &Service{indexKey: devIndexKey}, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("PHI_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("PHI_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}

	enc, err := NewAESEncryptor(key)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte("blind-index"))

	logger.Info().Msg("PHI field-level encryption enabled")
	return &Service{encryptor: enc, indexKey: mac.Sum(nil)}, nil
}

// Encryptor returns the active encryptor, or nil when encryption is disabled.
func (s *Service) Encryptor() FieldEncryptor {
	return s.encryptor
}

func (s *Service) Enabled() bool {
	return s.encryptor != nil
}

// BlindIndex returns a stable keyed digest of an already-normalized value.
// Empty input yields an empty index.
func (s *Service) BlindIndex(normalized string) string {
	if normalized == "" {
		return ""
	}
	mac := hmac.New(sha256.New, s.indexKey)
	mac.Write([]byte(normalized))
	return hex.EncodeToString(mac.Sum(nil))
}
