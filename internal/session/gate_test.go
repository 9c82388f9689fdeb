package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unitir-dev/syllabus-api/internal/models"
)

func saveSession(t *testing.T, store *MemoryStore, token, user string) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), Record{Token: token, User: user}, time.Hour))
}

func TestGateMissingToken(t *testing.T) {
	gate := NewGate(NewMemoryStore(), nil)

	decision, user := gate.Authorize(context.Background(), "", models.RoleAdmin)
	require.Equal(t, DecisionRedirectLogin, decision)
	require.Nil(t, user)
}

func TestGateUnknownToken(t *testing.T) {
	gate := NewGate(NewMemoryStore(), nil)

	decision, user := gate.Authorize(context.Background(), "tok-1", "")
	require.Equal(t, DecisionRedirectLogin, decision)
	require.Nil(t, user)
}

func TestGateAllowsMatchingRole(t *testing.T) {
	store := NewMemoryStore()
	saveSession(t, store, "tok-1", `{"id":"u1","email":"t@uni.edu","role":"teacher"}`)
	gate := NewGate(store, nil)

	decision, user := gate.Authorize(context.Background(), "tok-1", models.RoleTeacher)
	require.Equal(t, DecisionAllow, decision)
	require.NotNil(t, user)
	require.Equal(t, "u1", user.ID)
	require.Equal(t, models.RoleTeacher, user.Role)
}

func TestGateAllowsAnyAuthenticatedWhenNoRoleRequired(t *testing.T) {
	store := NewMemoryStore()
	saveSession(t, store, "tok-1", `{"id":"u1","email":"t@uni.edu","role":"head"}`)
	gate := NewGate(store, nil)

	decision, user := gate.Authorize(context.Background(), "tok-1", "")
	require.Equal(t, DecisionAllow, decision)
	require.NotNil(t, user)
}

func TestGateExactRoleMatchNoHierarchy(t *testing.T) {
	store := NewMemoryStore()
	saveSession(t, store, "tok-1", `{"id":"u1","email":"a@uni.edu","role":"admin"}`)
	gate := NewGate(store, nil)

	// An admin visiting a teacher view is still redirected.
	decision, user := gate.Authorize(context.Background(), "tok-1", models.RoleTeacher)
	require.Equal(t, DecisionRedirectLogin, decision)
	require.Nil(t, user)
}

func TestGateCorruptUserClearsSession(t *testing.T) {
	store := NewMemoryStore()
	saveSession(t, store, "tok-1", `{not json`)
	gate := NewGate(store, nil)

	decision, user := gate.Authorize(context.Background(), "tok-1", "")
	require.Equal(t, DecisionRedirectLogin, decision)
	require.Nil(t, user)
	require.Equal(t, 0, store.Len())
}

func TestGateDecisionNotCached(t *testing.T) {
	store := NewMemoryStore()
	saveSession(t, store, "tok-1", `{"id":"u1","email":"t@uni.edu","role":"teacher"}`)
	gate := NewGate(store, nil)

	decision, _ := gate.Authorize(context.Background(), "tok-1", models.RoleTeacher)
	require.Equal(t, DecisionAllow, decision)

	// Logout in another tab clears the session; the next check must refuse.
	require.NoError(t, store.Clear(context.Background(), "tok-1"))
	decision, user := gate.Authorize(context.Background(), "tok-1", models.RoleTeacher)
	require.Equal(t, DecisionRedirectLogin, decision)
	require.Nil(t, user)
}
