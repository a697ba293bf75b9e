package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"blissai-backend/internal/middleware"
	"blissai-backend/internal/models"
	"blissai-backend/internal/repository"
)

// AuthService is the credential manager: it creates accounts, checks login
// credentials and hands out session tokens.
type AuthService struct {
	accounts   AccountStore
	jwt        *middleware.JWTAuth
	bcryptCost int
	dummyHash  []byte
	log        *slog.Logger
}

func NewAuthService(accounts AccountStore, jwt *middleware.JWTAuth, bcryptCost int, log *slog.Logger) (*AuthService, error) {
	// Compared against when the email is unknown so both paths cost one bcrypt check.
	dummy, err := bcrypt.GenerateFromPassword([]byte("bliss-dummy-password"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}

	return &AuthService{
		accounts:   accounts,
		jwt:        jwt,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
		log:        log,
	}, nil
}

// Register validates a signup form and creates the account.
func (s *AuthService) Register(ctx context.Context, req models.CreateAccountRequest) (*models.Account, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.CreateAccount(ctx, req.Email, req.Password)
}

// CreateAccount inserts a new account unless the email is already taken.
// The lookup is a fast path; the unique constraint on accounts.email decides
// concurrent signups for the same address.
func (s *AuthService) CreateAccount(ctx context.Context, email, password string) (*models.Account, error) {
	_, err := s.accounts.GetByEmail(ctx, email)
	if err == nil {
		return nil, &ConflictError{Message: "Account already exists"}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, &StoreError{Op: "lookup account", Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: string(hash),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, &ConflictError{Message: "Account already exists"}
		}
		return nil, &StoreError{Op: "create account", Err: err}
	}

	s.log.Info("account created", "account_id", account.ID)
	return account, nil
}

// ValidateLogin reports the account id matching email and password.
func (s *AuthService) ValidateLogin(ctx context.Context, email, password string) (uuid.UUID, bool, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, &StoreError{Op: "lookup account", Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return uuid.Nil, false, nil
	}
	return account.ID, true, nil
}

// Login checks the credentials and issues a fresh session token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthToken, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	accountID, ok, err := s.ValidateLogin(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &InvalidCredentialsError{Message: "Invalid email or password"}
	}

	token, expiresAt, err := s.jwt.Issue(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	return &models.AuthToken{
		Token:     token,
		ExpiresIn: int(s.jwt.TTL().Seconds()),
		ExpiresAt: expiresAt,
	}, nil
}

// ChangePassword replaces the password of an authenticated account after
// checking the old one.
func (s *AuthService) ChangePassword(ctx context.Context, accountID uuid.UUID, req models.ChangePasswordRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &UnauthorizedError{Message: "Account not found"}
		}
		return &StoreError{Op: "lookup account", Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.OldPassword)); err != nil {
		return &InvalidCredentialsError{Message: "Current password is incorrect"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, accountID, string(hash)); err != nil {
		return &StoreError{Op: "update password", Err: err}
	}

	s.log.Info("password changed", "account_id", accountID)
	return nil
}
