package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"maskan/internal/auth"
	"maskan/internal/errors"
	"maskan/internal/model"
	"maskan/internal/notify"
	"maskan/internal/repository"
	"maskan/internal/validate"
)

const (
	// OneTimeTokenExpiry bounds verification and reset tokens.
	OneTimeTokenExpiry = time.Hour
	oneTimeTokenBytes  = 32
)

// SignupInput is the data needed to register.
type SignupInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// ProfileInput is a partial profile edit. Nil fields are left unchanged.
type ProfileInput struct {
	Name     *string `json:"name" validate:"omitempty,min=1"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6"`
}

// AuthResult is returned by operations that issue a bearer token.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
	// Notification is set when the operation sent a message.
	Notification *notify.Delivery
}

// ProfileResult is returned by UpdateProfile. Token is set when the password
// changed, since every earlier token stops working.
type ProfileResult struct {
	User  *model.User
	Token string
}

// AuthService manages credentials, sessions and one-time tokens.
type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, user *model.User) (*AuthResult, error)
	Logout(ctx context.Context, user *model.User, claims *auth.Claims) error
	// Authenticate resolves the user behind verified claims.
	Authenticate(ctx context.Context, claims *auth.Claims) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User, in ProfileInput) (*ProfileResult, error)
	RequestVerification(ctx context.Context, user *model.User) (notify.Delivery, error)
	Verify(ctx context.Context, token string) (*model.User, error)
	RequestPasswordReset(ctx context.Context, email string) (notify.Delivery, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type authService struct {
	userRepo    repository.UserRepository
	tokens      auth.TokenService
	tokenStore  auth.TokenStoreInterface
	notifier    notify.Dispatcher
	validator   *validate.Validator
	frontendURL string
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	tokens auth.TokenService,
	tokenStore auth.TokenStoreInterface,
	notifier notify.Dispatcher,
	frontendURL string,
	logger *zap.Logger,
) AuthService {
	return &authService{
		userRepo:    userRepo,
		tokens:      tokens,
		tokenStore:  tokenStore,
		notifier:    notifier,
		validator:   validate.New(),
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
		now:         time.Now,
	}
}

// Signup registers a user and opens a session.
func (s *authService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.FindByEmail(ctx, in.Email); err == nil {
		return nil, errors.ErrDuplicateEmail
	} else if !stderrors.Is(err, errors.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	result, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	d := s.notifier.Dispatch(ctx, notify.WelcomeEmail(user.Email, user.Name, user.ID.Hex()))
	result.Notification = &d
	return result, nil
}

// Login checks credentials and opens a session. Unknown email and wrong
// password fail identically.
func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, errors.ErrInvalidCredentials
	}

	return s.openSession(ctx, user)
}

// Refresh issues a new token for an authenticated user.
func (s *authService) Refresh(ctx context.Context, user *model.User) (*AuthResult, error) {
	return s.openSession(ctx, user)
}

// Logout revokes the presented token and clears the stored session.
func (s *authService) Logout(ctx context.Context, user *model.User, claims *auth.Claims) error {
	if claims != nil && claims.ExpiresAt != nil {
		if err := s.tokenStore.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
			return fmt.Errorf("revoke token: %w", err)
		}
	}
	if err := s.userRepo.ClearSession(ctx, user.ID); err != nil && !stderrors.Is(err, errors.ErrUserNotFound) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Authenticate rejects revoked tokens and tokens older than the user's last
// credential change. A missing user is reported as ErrInvalidToken so the
// response does not reveal whether the account exists.
func (s *authService) Authenticate(ctx context.Context, claims *auth.Claims) (*model.User, error) {
	if claims == nil {
		return nil, errors.ErrInvalidToken
	}

	revoked, err := s.tokenStore.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, errors.ErrInvalidToken
	}

	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, errors.ErrInvalidToken
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrInvalidToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if user.TokensValidAfter != nil && claims.IssuedAt != nil && claims.IssuedAt.Time.Before(*user.TokensValidAfter) {
		return nil, errors.ErrInvalidToken
	}

	return user, nil
}

// UpdateProfile edits name, email and password. A password change signs out
// every other session and returns a fresh token.
func (s *authService) UpdateProfile(ctx context.Context, user *model.User, in ProfileInput) (*ProfileResult, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		in.Email = &email
	}
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	update := model.ProfileUpdate{Name: in.Name}
	if in.Email != nil && *in.Email != user.Email {
		existing, err := s.userRepo.FindByEmail(ctx, *in.Email)
		if err == nil && existing.ID != user.ID {
			return nil, errors.ErrDuplicateEmail
		}
		if err != nil && !stderrors.Is(err, errors.ErrUserNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		update.Email = in.Email
	}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		validAfter := s.now().UTC().Truncate(time.Second)
		update.PasswordHash = &hash
		update.TokensValidAfter = &validAfter
	}

	if update.IsEmpty() {
		return &ProfileResult{User: user}, nil
	}

	updated, err := s.userRepo.UpdateProfile(ctx, user.ID, update)
	if err != nil {
		return nil, err
	}

	result := &ProfileResult{User: updated}
	if in.Password != nil {
		session, err := s.openSession(ctx, updated)
		if err != nil {
			return nil, err
		}
		result.Token = session.Token
	}
	return result, nil
}

// RequestVerification stores a fresh verification token and emails the link.
// The token stays valid even when the email cannot be sent.
func (s *authService) RequestVerification(ctx context.Context, user *model.User) (notify.Delivery, error) {
	token, hash, err := newOneTimeToken()
	if err != nil {
		return notify.Delivery{}, err
	}
	if err := s.userRepo.SetVerificationToken(ctx, user.ID, hash, s.now().UTC().Add(OneTimeTokenExpiry)); err != nil {
		return notify.Delivery{}, fmt.Errorf("store verification token: %w", err)
	}

	link := s.frontendURL + "/verify/" + token
	return s.notifier.Dispatch(ctx, notify.VerificationEmail(user.Email, link, user.ID.Hex())), nil
}

// Verify consumes a verification token. It succeeds at most once per token.
func (s *authService) Verify(ctx context.Context, token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.ErrInvalidOrExpiredToken
	}
	return s.userRepo.ConsumeVerificationToken(ctx, auth.HashToken(token), s.now().UTC())
}

// RequestPasswordReset stores a reset token and emails the link.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) (notify.Delivery, error) {
	email = normalizeEmail(email)
	if err := s.validator.Struct(struct {
		Email string `json:"email" validate:"required,email"`
	}{email}); err != nil {
		return notify.Delivery{}, err
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return notify.Delivery{}, err
	}

	token, hash, err := newOneTimeToken()
	if err != nil {
		return notify.Delivery{}, err
	}
	if err := s.userRepo.SetResetToken(ctx, user.ID, hash, s.now().UTC().Add(OneTimeTokenExpiry)); err != nil {
		return notify.Delivery{}, fmt.Errorf("store reset token: %w", err)
	}

	link := s.frontendURL + "/reset-password/" + token
	return s.notifier.Dispatch(ctx, notify.PasswordResetEmail(user.Email, link, user.ID.Hex())), nil
}

// ResetPassword consumes a reset token and replaces the password. Every token
// issued before the reset stops working.
func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.validator.Struct(struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=6"`
	}{strings.TrimSpace(token), newPassword}); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	user, err := s.userRepo.ConsumeResetToken(ctx, auth.HashToken(strings.TrimSpace(token)), s.now().UTC(), hash)
	if err != nil {
		return err
	}
	s.logger.Info("password reset", zap.String("user_id", user.ID.Hex()))
	return nil
}

// openSession issues a token and records it as the user's active session.
func (s *authService) openSession(ctx context.Context, user *model.User) (*AuthResult, error) {
	token, claims, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, err
	}
	expiresAt := claims.ExpiresAt.Time
	if err := s.userRepo.SetSession(ctx, user.ID, auth.HashToken(token), expiresAt); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	out := *user
	out.PasswordHash = ""
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: &out}, nil
}

func newOneTimeToken() (token, hash string, err error) {
	token, err = auth.GenerateSecureToken(oneTimeTokenBytes)
	if err != nil {
		return "", "", err
	}
	return token, auth.HashToken(token), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
