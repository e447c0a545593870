package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"

	"maskan/internal/auth"
	"maskan/internal/cache"
	apperrors "maskan/internal/errors"
	"maskan/internal/model"
	"maskan/internal/notify"
	"maskan/internal/repository/memory"
)

// recordingDispatcher captures messages instead of sending them.
type recordingDispatcher struct {
	mu       sync.Mutex
	messages []notify.Message
	status   model.NotificationStatus
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg notify.Message) notify.Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	status := d.status
	if status == "" {
		status = model.NotificationStatusSent
	}
	return notify.Delivery{ID: "n-1", Channel: msg.Channel, Status: status}
}

func (d *recordingDispatcher) last() notify.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.messages[len(d.messages)-1]
}

type authFixture struct {
	svc      AuthService
	users    *memory.Users
	tokens   *auth.JWTService
	store    *auth.TokenStore
	notifier *recordingDispatcher
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	f := &authFixture{
		users:    memory.NewUsers(),
		tokens:   auth.NewJWTService("test-secret"),
		store:    auth.NewTokenStore(c),
		notifier: &recordingDispatcher{},
	}
	f.svc = NewAuthService(f.users, f.tokens, f.store, f.notifier, "https://front.example/", zaptest.NewLogger(t))
	return f
}

func (f *authFixture) signup(t *testing.T, email string) *AuthResult {
	t.Helper()
	res, err := f.svc.Signup(context.Background(), SignupInput{Name: "Ann", Email: email, Password: "secret1"})
	require.NoError(t, err)
	return res
}

func (f *authFixture) authenticate(t *testing.T, token string) (*model.User, error) {
	t.Helper()
	claims, err := f.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return f.svc.Authenticate(context.Background(), claims)
}

var linkToken = regexp.MustCompile(`/(?:verify|reset-password)/([0-9a-f]{64})`)

func tokenFromLink(t *testing.T, body string) string {
	t.Helper()
	m := linkToken.FindStringSubmatch(body)
	require.Len(t, m, 2, "no token link in %q", body)
	return m[1]
}

func TestAuthService_Signup(t *testing.T) {
	f := newAuthFixture(t)

	res := f.signup(t, "  Ann@Example.com ")

	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "ann@example.com", res.User.Email)
	assert.Empty(t, res.User.PasswordHash)
	require.NotNil(t, res.Notification)
	assert.Equal(t, notify.KindWelcome, f.notifier.last().Kind)

	stored, ok := f.users.Get(res.User.ID)
	require.True(t, ok)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.Equal(t, auth.HashToken(res.Token), stored.AuthTokenHash)

	user, err := f.authenticate(t, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)
}

func TestAuthService_SignupRejects(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "ann@example.com")

	tests := []struct {
		name  string
		input SignupInput
		want  error
	}{
		{"duplicate email", SignupInput{Name: "B", Email: "ANN@example.com", Password: "secret1"}, apperrors.ErrDuplicateEmail},
		{"missing name", SignupInput{Email: "b@example.com", Password: "secret1"}, apperrors.ErrValidation},
		{"bad email", SignupInput{Name: "B", Email: "nope", Password: "secret1"}, apperrors.ErrValidation},
		{"short password", SignupInput{Name: "B", Email: "b@example.com", Password: "12345"}, apperrors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Signup(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "ann@example.com")

	res, err := f.svc.Login(context.Background(), "ANN@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = f.svc.Login(context.Background(), "ann@example.com", "wrong-pass")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "ghost@example.com", "secret1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthService_Logout(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signup(t, "ann@example.com")

	claims, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), res.User, claims))

	_, err = f.authenticate(t, res.Token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	stored, _ := f.users.Get(res.User.ID)
	assert.Empty(t, stored.AuthTokenHash)
}

func TestAuthService_AuthenticateUnknownUser(t *testing.T) {
	f := newAuthFixture(t)

	token, _, err := f.tokens.Issue(primitive.NewObjectID().Hex())
	require.NoError(t, err)

	_, err = f.authenticate(t, token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	_, err = f.svc.Authenticate(context.Background(), &auth.Claims{UserID: "not-an-id"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signup(t, "ann@example.com")
	other := f.signup(t, "bob@example.com")

	name := "Ann B"
	out, err := f.svc.UpdateProfile(context.Background(), res.User, ProfileInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ann B", out.User.Name)
	assert.Empty(t, out.Token)

	taken := "BOB@example.com"
	_, err = f.svc.UpdateProfile(context.Background(), res.User, ProfileInput{Email: &taken})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)

	bad := "x"
	_, err = f.svc.UpdateProfile(context.Background(), res.User, ProfileInput{Password: &bad})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	out, err = f.svc.UpdateProfile(context.Background(), other.User, ProfileInput{})
	require.NoError(t, err)
	assert.Equal(t, other.User.ID, out.User.ID)
}

func TestAuthService_PasswordChangeInvalidatesOlderTokens(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signup(t, "ann@example.com")

	pw := "new-secret"
	out, err := f.svc.UpdateProfile(context.Background(), res.User, ProfileInput{Password: &pw})
	require.NoError(t, err)
	require.NotEmpty(t, out.Token)

	stale := &auth.Claims{
		UserID: res.User.ID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       "stale",
			IssuedAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	_, err = f.svc.Authenticate(context.Background(), stale)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	_, err = f.authenticate(t, out.Token)
	assert.NoError(t, err)

	_, err = f.svc.Login(context.Background(), "ann@example.com", "new-secret")
	assert.NoError(t, err)
}

func TestAuthService_Verify(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signup(t, "ann@example.com")

	d, err := f.svc.RequestVerification(context.Background(), res.User)
	require.NoError(t, err)
	assert.True(t, d.Delivered())

	msg := f.notifier.last()
	assert.Equal(t, notify.KindVerification, msg.Kind)
	assert.Contains(t, msg.Body, "https://front.example/verify/")
	token := tokenFromLink(t, msg.Body)

	user, err := f.svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, user.IsVerified)

	_, err = f.svc.Verify(context.Background(), token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredToken)

	_, err = f.svc.Verify(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredToken)
}

func TestAuthService_VerifyExpired(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signup(t, "ann@example.com")

	svc := f.svc.(*authService)
	svc.now = func() time.Time { return time.Now().Add(-2 * OneTimeTokenExpiry) }
	_, err := svc.RequestVerification(context.Background(), res.User)
	require.NoError(t, err)
	svc.now = time.Now

	_, err = svc.Verify(context.Background(), tokenFromLink(t, f.notifier.last().Body))
	assert.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredToken)
}

func TestAuthService_VerificationTokenSurvivesFailedEmail(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signup(t, "ann@example.com")
	f.notifier.status = model.NotificationStatusFailed

	d, err := f.svc.RequestVerification(context.Background(), res.User)
	require.NoError(t, err)
	assert.False(t, d.Delivered())

	_, err = f.svc.Verify(context.Background(), tokenFromLink(t, f.notifier.last().Body))
	assert.NoError(t, err)
}

func TestAuthService_PasswordReset(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signup(t, "ann@example.com")

	_, err := f.svc.RequestPasswordReset(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	_, err = f.svc.RequestPasswordReset(context.Background(), "ANN@example.com")
	require.NoError(t, err)
	msg := f.notifier.last()
	assert.Equal(t, notify.KindPasswordReset, msg.Kind)
	assert.Contains(t, msg.Body, "https://front.example/reset-password/")
	token := tokenFromLink(t, msg.Body)

	assert.ErrorIs(t, f.svc.ResetPassword(context.Background(), token, "123"), apperrors.ErrValidation)
	require.NoError(t, f.svc.ResetPassword(context.Background(), token, "brand-new"))
	assert.ErrorIs(t, f.svc.ResetPassword(context.Background(), token, "brand-new"), apperrors.ErrInvalidOrExpiredToken)

	_, err = f.svc.Login(context.Background(), "ann@example.com", "secret1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = f.svc.Login(context.Background(), "ann@example.com", "brand-new")
	assert.NoError(t, err)

	stale := &auth.Claims{
		UserID:           res.User.ID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}
	_, err = f.svc.Authenticate(context.Background(), stale)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
