package session

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/unitir-dev/syllabus-api/internal/models"
)

// Decision is the outcome of an access-gate check.
type Decision int

const (
	// DecisionAllow renders the requested view.
	DecisionAllow Decision = iota
	// DecisionRedirectLogin sends the caller to the login view. Every failure
	// mode collapses into this single outcome; the login view prompts
	// re-authentication.
	DecisionRedirectLogin
)

// Gate decides, per request to a protected view, whether the current session
// permits entry. The decision is re-evaluated on every call and never cached:
// the session can change between requests (logout in another tab).
type Gate struct {
	store  Store
	logger *zap.Logger
}

// NewGate builds a gate over the given session store.
func NewGate(store Store, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{store: store, logger: logger}
}

// Authorize checks the session behind token against the required role.
// requiredRole empty means any authenticated user. A corrupt user record
// clears the persisted session and fails closed; the gate never allows entry
// with an identity it could not parse.
func (g *Gate) Authorize(ctx context.Context, token string, requiredRole models.UserRole) (Decision, *models.UserInfo) {
	if token == "" {
		return DecisionRedirectLogin, nil
	}

	rec, err := g.store.Get(ctx, token)
	if err != nil {
		g.logger.Warn("session lookup failed", zap.Error(err))
		return DecisionRedirectLogin, nil
	}
	if rec == nil || rec.Token == "" || rec.User == "" {
		return DecisionRedirectLogin, nil
	}

	var user models.UserInfo
	if err := json.Unmarshal([]byte(rec.User), &user); err != nil {
		if clearErr := g.store.Clear(ctx, token); clearErr != nil {
			g.logger.Warn("failed to clear corrupt session", zap.Error(clearErr))
		}
		return DecisionRedirectLogin, nil
	}

	if requiredRole != "" && user.Role != requiredRole {
		return DecisionRedirectLogin, nil
	}

	return DecisionAllow, &user
}
