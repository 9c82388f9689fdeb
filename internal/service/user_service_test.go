package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/unitir-dev/syllabus-api/internal/models"
	appErrors "github.com/unitir-dev/syllabus-api/pkg/errors"
)

type mockUserRepo struct {
	users       map[string]*models.User
	byEmail     map[string]*models.User
	headedCount int
	assignCount int
	syllabiCnt  int
	deleted     []string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*models.User), byEmail: make(map[string]*models.User)}
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "u-new"
	}
	m.users[user.ID] = user
	m.byEmail[user.Email] = user
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserRepo) CountHeadedDepartments(ctx context.Context, id string) (int, error) {
	return m.headedCount, nil
}

func (m *mockUserRepo) CountAssignments(ctx context.Context, id string) (int, error) {
	return m.assignCount, nil
}

func (m *mockUserRepo) CountSyllabi(ctx context.Context, id string) (int, error) {
	return m.syllabiCnt, nil
}

func newUserService(repo *mockUserRepo) *UserService {
	return NewUserService(repo, validator.New(), zap.NewNop())
}

func TestUserServiceCreateHashesPasswordAndLowercasesEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := newUserService(repo)

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email: " Teacher@UNI.edu ", Password: "secret1", Role: "teacher", DepartmentID: "dept-1",
	})
	require.NoError(t, err)
	require.Equal(t, "teacher@uni.edu", user.Email)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))
	require.Equal(t, models.RoleTeacher, user.Role)
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	svc := newUserService(newMockUserRepo())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "x@uni.edu", Password: "secret1", Role: "dean", DepartmentID: "dept-1",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	repo.byEmail["taken@uni.edu"] = &models.User{ID: "u1", Email: "taken@uni.edu"}
	svc := newUserService(repo)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "taken@uni.edu", Password: "secret1", Role: "teacher", DepartmentID: "dept-1",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeleteBlocksSelf(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1"}
	svc := newUserService(repo)

	err := svc.Delete(context.Background(), "u1", "u1")
	require.Error(t, err)
	require.Empty(t, repo.deleted)
}

func TestUserServiceDeleteBlockedByDependencies(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1"}
	repo.headedCount = 1
	svc := newUserService(repo)

	err := svc.Delete(context.Background(), "u1", "admin-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	repo.headedCount = 0
	repo.syllabiCnt = 2
	err = svc.Delete(context.Background(), "u1", "admin-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeleteSuccess(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1"}
	svc := newUserService(repo)

	require.NoError(t, svc.Delete(context.Background(), "u1", "admin-1"))
	require.Equal(t, []string{"u1"}, repo.deleted)
}

func TestUserServiceUpdateKeepsPasswordWhenOmitted(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Email: "old@uni.edu", PasswordHash: "oldhash", Role: models.RoleTeacher}
	svc := newUserService(repo)

	user, err := svc.Update(context.Background(), "u1", UpdateUserRequest{
		Email: "new@uni.edu", Role: "head", DepartmentID: "dept-2",
	})
	require.NoError(t, err)
	require.Equal(t, "oldhash", user.PasswordHash)
	require.Equal(t, models.RoleHead, user.Role)
	require.Equal(t, "new@uni.edu", user.Email)
}
