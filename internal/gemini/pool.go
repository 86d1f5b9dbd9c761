package gemini

import (
	"context"

	"github.com/felipepmaragno/ramadan-companion/internal/crypto"
	"github.com/felipepmaragno/ramadan-companion/internal/domain"
)

// Credential is one API key drawn from a Pool together with its position.
type Credential struct {
	Index int
	Key   string
}

func (c Credential) Fingerprint() string {
	return crypto.Fingerprint(c.Key)
}

// Pool is a fixed, ordered set of interchangeable API keys handed out in
// round-robin order.
type Pool struct {
	keys   []string
	cursor Cursor
}

func NewPool(keys []string, cursor Cursor) *Pool {
	if cursor == nil {
		cursor = NewInMemoryCursor()
	}
	return &Pool{
		keys:   append([]string(nil), keys...),
		cursor: cursor,
	}
}

func (p *Pool) Size() int {
	return len(p.keys)
}

// Next returns the key at the cursor and advances the cursor, whatever the
// caller later does with the key.
func (p *Pool) Next(ctx context.Context) (Credential, error) {
	if len(p.keys) == 0 {
		return Credential{}, domain.ErrNoCredentials
	}

	i, err := p.cursor.Next(ctx, len(p.keys))
	if err != nil {
		return Credential{}, err
	}

	return Credential{Index: i, Key: p.keys[i]}, nil
}

func (p *Pool) Position(ctx context.Context) (int, error) {
	return p.cursor.Position(ctx, len(p.keys))
}

func (p *Pool) Reset(ctx context.Context) error {
	return p.cursor.Reset(ctx)
}

func (p *Pool) Fingerprints() []string {
	fps := make([]string, len(p.keys))
	for i, k := range p.keys {
		fps[i] = crypto.Fingerprint(k)
	}
	return fps
}
