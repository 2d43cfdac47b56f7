// internal/lobby/codes.go
package lobby

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength   = 6

	// codeAttempts bounds how many random codes are tried before giving up.
	codeAttempts = 16
)

// CodeReserver claims room codes so that no two open rooms share one, possibly
// across several server instances.
type CodeReserver interface {
	Reserve(ctx context.Context, code string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, code string) error
}

// NewCode returns a random room code.
func NewCode() string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// NormalizeCode upper-cases and trims a user-supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// MemoryCodes is a single-process CodeReserver.
type MemoryCodes struct {
	mu    sync.Mutex
	codes map[string]time.Time // code -> expiry
	now   func() time.Time
}

func NewMemoryCodes() *MemoryCodes {
	return &MemoryCodes{codes: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryCodes) Reserve(_ context.Context, code string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if exp, ok := m.codes[code]; ok && now.Before(exp) {
		return false, nil
	}
	m.codes[code] = now.Add(ttl)
	return true, nil
}

func (m *MemoryCodes) Release(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, code)
	return nil
}
