package safety

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// TokenTTL is how long a confirmation token stays valid.
const TokenTTL = 5 * time.Minute

type pendingConfirmation struct {
	tool      string
	resource  string
	createdAt time.Time
}

// ConfirmationTracker issues single-use tokens that a caller must echo back
// before a sensitive write is carried out. A token is bound to the tool and
// resource it was issued for.
type ConfirmationTracker struct {
	sensitive map[string]struct{}
	now       func() time.Time

	mu     sync.Mutex
	tokens map[string]pendingConfirmation
}

// NewConfirmationTracker returns a tracker for the given sensitive tools.
func NewConfirmationTracker(sensitiveTools []string) *ConfirmationTracker {
	ct := &ConfirmationTracker{
		sensitive: make(map[string]struct{}, len(sensitiveTools)),
		now:       time.Now,
		tokens:    make(map[string]pendingConfirmation),
	}
	for _, tool := range sensitiveTools {
		ct.sensitive[tool] = struct{}{}
	}
	return ct
}

// NeedsConfirmation reports whether tool requires a token.
func (ct *ConfirmationTracker) NeedsConfirmation(tool string) bool {
	_, ok := ct.sensitive[tool]
	return ok
}

// RequestConfirmation issues a token for tool acting on resource.
func (ct *ConfirmationTracker) RequestConfirmation(tool, resource string) string {
	token := generateToken()

	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.sweepLocked()
	ct.tokens[token] = pendingConfirmation{tool: tool, resource: resource, createdAt: ct.now()}
	return token
}

// Confirm consumes token and reports whether it was issued for the same
// tool and resource and has not expired. A token presented for a different
// tool or resource is still consumed.
func (ct *ConfirmationTracker) Confirm(tool, resource, token string) bool {
	if token == "" {
		return false
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	pending, ok := ct.tokens[token]
	if !ok {
		return false
	}
	delete(ct.tokens, token)

	if ct.now().Sub(pending.createdAt) > TokenTTL {
		return false
	}
	return pending.tool == tool && pending.resource == resource
}

// Pending returns the number of outstanding unexpired tokens.
func (ct *ConfirmationTracker) Pending() int {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.sweepLocked()
	return len(ct.tokens)
}

func (ct *ConfirmationTracker) sweepLocked() {
	now := ct.now()
	for token, p := range ct.tokens {
		if now.Sub(p.createdAt) > TokenTTL {
			delete(ct.tokens, token)
		}
	}
}

func generateToken() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic("safety: crypto/rand: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
