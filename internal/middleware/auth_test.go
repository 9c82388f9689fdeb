package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/unitir-dev/syllabus-api/internal/models"
	"github.com/unitir-dev/syllabus-api/internal/service"
	"github.com/unitir-dev/syllabus-api/internal/session"
)

type mockAuthUsers struct {
	user *models.User
}

func (m *mockAuthUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.user, nil
}

func (m *mockAuthUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	return m.user, nil
}

type gateFixture struct {
	store  *session.MemoryStore
	router *gin.Engine
	auth   *service.AuthService
	users  *mockAuthUsers
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewMemoryStore()
	gate := session.NewGate(store, zap.NewNop())
	users := &mockAuthUsers{}
	auth := service.NewAuthService(users, store, nil, zap.NewNop(), service.AuthConfig{
		TokenSecret: "secret",
		TokenExpiry: time.Hour,
		Issuer:      "syllabus-api",
	})
	metrics := service.NewMetricsService()

	r := gin.New()
	protected := r.Group("", Authenticate(auth, gate, metrics))
	protected.GET("/dashboard", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"view": "dashboard"})
	})
	protected.GET("/admin", RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"view": "admin"})
	})

	return &gateFixture{store: store, router: r, auth: auth, users: users}
}

// login runs the real login flow, leaving a signed token and the matching
// session record behind.
func (f *gateFixture) login(t *testing.T, id string, role models.UserRole) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	f.users.user = &models.User{ID: id, Email: id + "@uni.edu", PasswordHash: string(hash), Role: role}

	res, err := f.auth.Login(context.Background(), models.LoginRequest{Email: id + "@uni.edu", Password: "password"})
	require.NoError(t, err)
	return res.AccessToken
}

func doRequest(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthenticateAllowsLiveSession(t *testing.T) {
	f := newGateFixture(t)
	token := f.login(t, "u1", models.RoleTeacher)

	w := doRequest(f.router, "/dashboard", token)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthenticateMissingTokenRedirects(t *testing.T) {
	f := newGateFixture(t)

	w := doRequest(f.router, "/dashboard", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "SESSION_EXPIRED", body.Error.Code)
	require.Equal(t, "/login", body.Meta["redirect"])
}

func TestAuthenticateGarbageTokenRedirects(t *testing.T) {
	f := newGateFixture(t)

	w := doRequest(f.router, "/dashboard", "not.a.token")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateClearedSessionRedirects(t *testing.T) {
	f := newGateFixture(t)
	token := f.login(t, "u1", models.RoleTeacher)
	require.NoError(t, f.store.Clear(context.Background(), token))

	w := doRequest(f.router, "/dashboard", token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateCorruptSessionClearsStorage(t *testing.T) {
	f := newGateFixture(t)
	token := f.login(t, "u1", models.RoleTeacher)
	require.NoError(t, f.store.Save(context.Background(), session.Record{Token: token, User: "{corrupt"}, time.Hour))

	w := doRequest(f.router, "/dashboard", token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, 0, f.store.Len())
}

func TestRequireRolesExactMatch(t *testing.T) {
	f := newGateFixture(t)

	adminToken := f.login(t, "a1", models.RoleAdmin)
	w := doRequest(f.router, "/admin", adminToken)
	require.Equal(t, http.StatusOK, w.Code)

	teacherToken := f.login(t, "t1", models.RoleTeacher)
	w = doRequest(f.router, "/admin", teacherToken)
	require.Equal(t, http.StatusForbidden, w.Code)
}
