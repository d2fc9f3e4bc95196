package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/seclens/seclens/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository implements ports.UserRepository for testing.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) SaveUser(ctx context.Context, user domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) CountUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestAuthService_Login(t *testing.T) {
	mockRepo := new(MockUserRepository)
	svc := NewAuthService(mockRepo)
	ctx := context.Background()

	password := "secret123"
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)

	user := &domain.User{
		ID:           "u-1",
		Username:     "admin",
		PasswordHash: string(hashed),
		Role:         domain.RoleAdmin,
	}

	// 1. Success
	mockRepo.On("GetUserByUsername", ctx, "admin").Return(user, nil)

	token, err := svc.Login(ctx, domain.Credentials{Username: "admin", Password: "secret123"})
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	// 2. Wrong Password
	mockRepo.On("GetUserByUsername", ctx, "admin_fail").Return(user, nil)
	token, err = svc.Login(ctx, domain.Credentials{Username: "admin_fail", Password: "wrong"})
	assert.Error(t, err)
	assert.Empty(t, token)
	assert.Equal(t, ErrInvalidCredentials, err)

	// 3. User Not Found
	mockRepo.On("GetUserByUsername", ctx, "ghost").Return(nil, errors.New("not found"))
	_, err = svc.Login(ctx, domain.Credentials{Username: "ghost", Password: "any"})
	assert.Error(t, err)
	assert.Equal(t, ErrInvalidCredentials, err) // Should mask not found
}

func TestAuthService_LoginRateLimit(t *testing.T) {
	mockRepo := new(MockUserRepository)
	svc := NewAuthService(mockRepo)
	ctx := context.Background()

	mockRepo.On("GetUserByUsername", ctx, "brute").Return(nil, errors.New("not found"))

	for i := 0; i < maxLoginAttempts; i++ {
		_, err := svc.Login(ctx, domain.Credentials{Username: "brute", Password: "guess"})
		assert.Equal(t, ErrInvalidCredentials, err)
	}

	_, err := svc.Login(ctx, domain.Credentials{Username: "brute", Password: "guess"})
	assert.Equal(t, ErrRateLimitExceeded, err)
}

func TestAuthService_ValidateToken(t *testing.T) {
	mockRepo := new(MockUserRepository)
	svc := NewAuthService(mockRepo)
	ctx := context.Background()

	password := "pass"
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &domain.User{ID: "u-1", Username: "user", PasswordHash: string(hashed)}

	mockRepo.On("GetUserByUsername", ctx, "user").Return(user, nil)

	token, _ := svc.Login(ctx, domain.Credentials{Username: "user", Password: "pass"})

	// Expect GetUserByID to be called during validation
	mockRepo.On("GetUserByID", ctx, "u-1").Return(user, nil)

	u, err := svc.ValidateToken(ctx, token)
	assert.NoError(t, err)
	assert.Equal(t, "user", u.Username)

	// Invalid token
	u, err = svc.ValidateToken(ctx, "fake-token")
	assert.Error(t, err)
	assert.Nil(t, u)
}

func TestAuthService_Logout(t *testing.T) {
	mockRepo := new(MockUserRepository)
	svc := NewAuthService(mockRepo)
	ctx := context.Background()

	hashed, _ := bcrypt.GenerateFromPassword([]byte("pass"), bcrypt.MinCost)
	user := &domain.User{ID: "u-1", Username: "user", PasswordHash: string(hashed)}
	mockRepo.On("GetUserByUsername", ctx, "user").Return(user, nil)

	token, err := svc.Login(ctx, domain.Credentials{Username: "user", Password: "pass"})
	assert.NoError(t, err)

	assert.NoError(t, svc.Logout(ctx, token))

	_, err = svc.ValidateToken(ctx, token)
	assert.Equal(t, ErrInvalidSession, err)
}

func TestAuthService_CreateUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	svc := NewAuthService(mockRepo)
	ctx := context.Background()

	newUser := domain.User{Username: "newuser", Role: domain.RoleViewer}

	// Verify hashing happened and an id was assigned.
	mockRepo.On("SaveUser", ctx, mock.MatchedBy(func(u domain.User) bool {
		return u.Username == "newuser" && len(u.PasswordHash) > 0 && u.ID != ""
	})).Return(nil)

	err := svc.CreateUser(ctx, newUser, "password")
	assert.NoError(t, err)

	mockRepo.AssertExpectations(t)
}

func TestAuthService_EnsureDefaultAdmin(t *testing.T) {
	ctx := context.Background()

	// Empty table: admin is provisioned.
	mockRepo := new(MockUserRepository)
	svc := NewAuthService(mockRepo)
	mockRepo.On("CountUsers", ctx).Return(int64(0), nil)
	mockRepo.On("SaveUser", ctx, mock.MatchedBy(func(u domain.User) bool {
		return u.Username == "admin" && u.Role == domain.RoleAdmin
	})).Return(nil)

	assert.NoError(t, svc.EnsureDefaultAdmin(ctx, "admin", "changeme"))
	mockRepo.AssertExpectations(t)

	// Populated table: nothing happens.
	mockRepo = new(MockUserRepository)
	svc = NewAuthService(mockRepo)
	mockRepo.On("CountUsers", ctx).Return(int64(3), nil)

	assert.NoError(t, svc.EnsureDefaultAdmin(ctx, "admin", "changeme"))
	mockRepo.AssertNotCalled(t, "SaveUser", mock.Anything, mock.Anything)
}
