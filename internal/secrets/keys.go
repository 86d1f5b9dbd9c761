package secrets

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felipepmaragno/ramadan-companion/internal/crypto"
)

// KeySource describes where the Gemini key pool comes from.
type KeySource struct {
	EnvKeys    []string
	Store      Store
	SecretName string
	Encryptor  *crypto.Encryptor
}

// LoadGeminiKeys returns the environment keys followed by the secret store
// keys, decrypted where needed. Empty and repeated keys are dropped; the
// first occurrence keeps its position.
func LoadGeminiKeys(ctx context.Context, src KeySource) ([]string, error) {
	raw := append([]string(nil), src.EnvKeys...)

	if src.SecretName != "" && src.Store != nil {
		stored, err := GetKeyList(ctx, src.Store, src.SecretName)
		if err != nil {
			return nil, err
		}
		raw = append(raw, stored...)
	}

	seen := make(map[string]struct{}, len(raw))
	keys := make([]string, 0, len(raw))

	for i, value := range raw {
		key, err := src.Encryptor.Reveal(value)
		if err != nil {
			return nil, fmt.Errorf("reveal gemini key %d: %w", i+1, err)
		}
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			slog.Warn("duplicate gemini key ignored", "key_fingerprint", crypto.Fingerprint(key))
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	return keys, nil
}
