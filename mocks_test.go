package cloudscribe_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	cloudscribe "github.com/weedkiller/cloudscribe"
)

// MockUsers implements cloudscribe.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) FindByID(ctx context.Context, siteID, id uuid.UUID) (*cloudscribe.SiteUser, error) {
	args := m.Called(ctx, siteID, id)
	if u := args.Get(0); u != nil {
		return u.(*cloudscribe.SiteUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) FindByLoginName(ctx context.Context, siteID uuid.UUID, name string) (*cloudscribe.SiteUser, error) {
	args := m.Called(ctx, siteID, name)
	if u := args.Get(0); u != nil {
		return u.(*cloudscribe.SiteUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) FindByEmail(ctx context.Context, siteID uuid.UUID, email string) (*cloudscribe.SiteUser, error) {
	args := m.Called(ctx, siteID, email)
	if u := args.Get(0); u != nil {
		return u.(*cloudscribe.SiteUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) Create(ctx context.Context, user *cloudscribe.SiteUser) (*cloudscribe.SiteUser, error) {
	args := m.Called(ctx, user)
	if u := args.Get(0); u != nil {
		return u.(*cloudscribe.SiteUser), args.Error(1)
	}
	if err := args.Error(1); err != nil {
		return nil, err
	}
	// echo the input when the expectation configured no explicit record
	return user, nil
}

func (m *MockUsers) Update(ctx context.Context, user *cloudscribe.SiteUser) (*cloudscribe.SiteUser, error) {
	args := m.Called(ctx, user)
	if u := args.Get(0); u != nil {
		return u.(*cloudscribe.SiteUser), args.Error(1)
	}
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return user, nil
}

func (m *MockUsers) LoginNameAvailable(ctx context.Context, siteID uuid.UUID, name string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, siteID, name, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsers) TrackAttemptedLogin(ctx context.Context, user *cloudscribe.SiteUser) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUsers) TrackSuccessfulLogin(ctx context.Context, user *cloudscribe.SiteUser) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockUserLogins implements cloudscribe.UserLogins
type MockUserLogins struct {
	mock.Mock
}

func (m *MockUserLogins) Find(ctx context.Context, siteID uuid.UUID, provider, providerKey string) (*cloudscribe.UserLogin, error) {
	args := m.Called(ctx, siteID, provider, providerKey)
	if l := args.Get(0); l != nil {
		return l.(*cloudscribe.UserLogin), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserLogins) Add(ctx context.Context, login *cloudscribe.UserLogin) error {
	args := m.Called(ctx, login)
	return args.Error(0)
}

func (m *MockUserLogins) Remove(ctx context.Context, siteID, userID uuid.UUID, provider, providerKey string) error {
	args := m.Called(ctx, siteID, userID, provider, providerKey)
	return args.Error(0)
}

func (m *MockUserLogins) ListForUser(ctx context.Context, siteID, userID uuid.UUID) ([]*cloudscribe.UserLogin, error) {
	args := m.Called(ctx, siteID, userID)
	if l := args.Get(0); l != nil {
		return l.([]*cloudscribe.UserLogin), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockSignInManager implements cloudscribe.SignInManager
type MockSignInManager struct {
	mock.Mock
}

func (m *MockSignInManager) PasswordSignIn(ctx context.Context, user *cloudscribe.SiteUser, password string, persistent bool) (cloudscribe.SignInOutcome, error) {
	args := m.Called(ctx, user, password, persistent)
	return args.Get(0).(cloudscribe.SignInOutcome), args.Error(1)
}

func (m *MockSignInManager) ExternalLoginSignIn(ctx context.Context, user *cloudscribe.SiteUser, provider, providerKey string) (cloudscribe.SignInOutcome, error) {
	args := m.Called(ctx, user, provider, providerKey)
	return args.Get(0).(cloudscribe.SignInOutcome), args.Error(1)
}

func (m *MockSignInManager) TwoFactorAuthenticatorSignIn(ctx context.Context, user *cloudscribe.SiteUser, code string, rememberMe, rememberDevice bool) (cloudscribe.SignInOutcome, error) {
	args := m.Called(ctx, user, code, rememberMe, rememberDevice)
	return args.Get(0).(cloudscribe.SignInOutcome), args.Error(1)
}

func (m *MockSignInManager) TwoFactorRecoveryCodeSignIn(ctx context.Context, user *cloudscribe.SiteUser, code string) (cloudscribe.SignInOutcome, error) {
	args := m.Called(ctx, user, code)
	return args.Get(0).(cloudscribe.SignInOutcome), args.Error(1)
}

func (m *MockSignInManager) GetTwoFactorAuthenticationUser(ctx context.Context, siteID uuid.UUID) (*cloudscribe.SiteUser, error) {
	args := m.Called(ctx, siteID)
	if u := args.Get(0); u != nil {
		return u.(*cloudscribe.SiteUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSignInManager) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSecurityTokens implements cloudscribe.SecurityTokens
type MockSecurityTokens struct {
	mock.Mock
}

func (m *MockSecurityTokens) GenerateEmailConfirmationToken(user *cloudscribe.SiteUser) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

func (m *MockSecurityTokens) ValidateEmailConfirmationToken(user *cloudscribe.SiteUser, token string) error {
	args := m.Called(user, token)
	return args.Error(0)
}

func (m *MockSecurityTokens) GeneratePasswordResetToken(user *cloudscribe.SiteUser) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

func (m *MockSecurityTokens) ValidatePasswordResetToken(user *cloudscribe.SiteUser, token string) error {
	args := m.Called(user, token)
	return args.Error(0)
}

func (m *MockSecurityTokens) GenerateTwoFactorToken(user *cloudscribe.SiteUser, provider string) (string, error) {
	args := m.Called(user, provider)
	return args.String(0), args.Error(1)
}
