package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/casebook/internal/auth"
	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/mailer"
	"github.com/prn-tf/casebook/internal/repository"
)

// UserService handles registration, login and password recovery.
type UserService struct {
	userRepo   repository.UserRepository
	tokenRepo  repository.PasswordResetTokenRepository
	tokens     *auth.TokenManager
	mail       mailer.Mailer
	bcryptCost int
	resetTTL   time.Duration
	logger     zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(
	userRepo repository.UserRepository,
	tokenRepo repository.PasswordResetTokenRepository,
	tokens *auth.TokenManager,
	mail mailer.Mailer,
	bcryptCost int,
	resetTTL time.Duration,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		tokens:     tokens,
		mail:       mail,
		bcryptCost: bcryptCost,
		resetTTL:   resetTTL,
		logger:     logger.With().Str("service", "user").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// RegisterInput contains the data needed to register a user.
type RegisterInput struct {
	GivenName  string
	FamilyName string
	Email      string
	Password   string
}

// LoginInput contains login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// LoginOutput contains the result of a successful login.
type LoginOutput struct {
	User  *domain.User
	Token string
}

// =============================================================================
// Service Methods
// =============================================================================

// Register creates a new user account.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if !strings.Contains(input.Email, "@") {
		return nil, domain.NewValidationError("email", ErrInvalidEmail.Error())
	}
	if len(input.Password) < 8 {
		return nil, domain.NewValidationError("password", ErrInvalidPassword.Error())
	}
	if strings.TrimSpace(input.GivenName) == "" {
		return nil, domain.NewValidationError("given_name", "given name is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	user := domain.NewUser(input.GivenName, input.FamilyName, input.Email, string(hash))
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyRegistered) {
			return nil, domain.NewConflictError(err, "email already registered")
		}
		s.logger.Error().Err(err).Str("email", input.Email).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("user registered")
	return user, nil
}

// Login verifies credentials and issues an access token. Unknown email and
// wrong password return the same error.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Str("email", email).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to issue token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user logged in")
	return &LoginOutput{User: user, Token: token}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.NewNotFoundError(err, "user not found")
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// RequestPasswordReset issues a reset token and mails it. To avoid disclosing
// which emails exist, an unknown email succeeds silently.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Info().Str("email", email).Msg("reset requested for unknown email")
			return nil
		}
		s.logger.Error().Err(err).Str("email", email).Msg("failed to get user")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	token := domain.NewPasswordResetToken(user.ID, s.resetTTL)
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to store reset token")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.mail.SendPasswordReset(ctx, user.Email, token.Token.String()); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to send reset email")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("password reset issued")
	return nil
}

// ResetPassword redeems a reset token and replaces the user's password.
func (s *UserService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if len(newPassword) < 8 {
		return domain.NewValidationError("password", ErrInvalidPassword.Error())
	}

	tokenID, err := uuid.Parse(rawToken)
	if err != nil {
		return domain.NewValidationError("token", "malformed reset token")
	}

	token, err := s.tokenRepo.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrResetTokenNotFound) {
			return domain.NewNotFoundError(err, "reset token not found")
		}
		s.logger.Error().Err(err).Msg("failed to get reset token")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !token.IsValid(time.Now()) {
		return domain.NewValidationError("token", domain.ErrResetTokenExpired.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.userRepo.UpdatePassword(ctx, token.UserID, string(hash)); err != nil {
		s.logger.Error().Err(err).Int64("user_id", token.UserID).Msg("failed to update password")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if err := s.tokenRepo.MarkUsed(ctx, token.Token); err != nil {
		s.logger.Error().Err(err).Int64("user_id", token.UserID).Msg("failed to consume reset token")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", token.UserID).Msg("password reset completed")
	return nil
}
