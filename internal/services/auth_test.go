package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"blissai-backend/internal/middleware"
	"blissai-backend/internal/mocks"
	"blissai-backend/internal/models"
	"blissai-backend/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthService(t *testing.T) (*AuthService, *mocks.MockAccountStore, *middleware.JWTAuth) {
	t.Helper()
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	jwtAuth := middleware.NewJWTAuth("test-secret", time.Hour)

	svc, err := NewAuthService(accounts, jwtAuth, bcrypt.MinCost, discardLogger())
	require.NoError(t, err)
	return svc, accounts, jwtAuth
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestCreateAccount_CreatedThenAlreadyExists(t *testing.T) {
	req := require.New(t)
	svc, accounts, _ := newTestAuthService(t)
	ctx := context.Background()

	var stored *models.Account
	gomock.InOrder(
		accounts.EXPECT().GetByEmail(gomock.Any(), "a@x.io").Return(nil, pgx.ErrNoRows),
		accounts.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, a *models.Account) error {
				a.ID = uuid.New()
				stored = a
				return nil
			}),
		accounts.EXPECT().GetByEmail(gomock.Any(), "a@x.io").DoAndReturn(
			func(context.Context, string) (*models.Account, error) { return stored, nil }),
	)

	account, err := svc.CreateAccount(ctx, "a@x.io", "pw1")
	req.NoError(err)
	req.NotEqual(uuid.Nil, account.ID)
	req.NotEqual("pw1", account.PasswordHash)
	req.NoError(bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("pw1")))

	_, err = svc.CreateAccount(ctx, "a@x.io", "pw2")
	var conflict *ConflictError
	req.ErrorAs(err, &conflict)
	req.Equal("Account already exists", conflict.Message)

	// The first password is still the one on record.
	req.NoError(bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pw1")))
}

func TestCreateAccount_UniqueViolationIsConflict(t *testing.T) {
	svc, accounts, _ := newTestAuthService(t)

	accounts.EXPECT().GetByEmail(gomock.Any(), "race@x.io").Return(nil, pgx.ErrNoRows)
	accounts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(repository.ErrEmailTaken)

	_, err := svc.CreateAccount(context.Background(), "race@x.io", "pw")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestCreateAccount_StoreFailure(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("lookup", func(t *testing.T) {
		svc, accounts, _ := newTestAuthService(t)
		accounts.EXPECT().GetByEmail(gomock.Any(), "a@x.io").Return(nil, boom)

		_, err := svc.CreateAccount(context.Background(), "a@x.io", "pw")
		var storeErr *StoreError
		require.ErrorAs(t, err, &storeErr)
		require.ErrorIs(t, err, boom)
	})

	t.Run("insert", func(t *testing.T) {
		svc, accounts, _ := newTestAuthService(t)
		accounts.EXPECT().GetByEmail(gomock.Any(), "a@x.io").Return(nil, pgx.ErrNoRows)
		accounts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(boom)

		_, err := svc.CreateAccount(context.Background(), "a@x.io", "pw")
		var storeErr *StoreError
		require.ErrorAs(t, err, &storeErr)
		require.Equal(t, "create account", storeErr.Op)
	})
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   models.CreateAccountRequest
		field string
		msg   string
	}{
		{
			name:  "missing email",
			req:   models.CreateAccountRequest{Password: "pw", ConfirmPassword: "pw"},
			field: "email",
			msg:   "email is required",
		},
		{
			name:  "missing password",
			req:   models.CreateAccountRequest{Email: "a@x.io"},
			field: "password",
			msg:   "password is required",
		},
		{
			name:  "passwords differ",
			req:   models.CreateAccountRequest{Email: "a@x.io", Password: "pw", ConfirmPassword: "other"},
			field: "confirm-password",
			msg:   "Passwords do not match",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// No store expectations: validation must fail before any lookup.
			svc, _, _ := newTestAuthService(t)

			_, err := svc.Register(context.Background(), tc.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.msg, verr.Fields[tc.field])
		})
	}
}

func TestValidateLogin(t *testing.T) {
	svc, accounts, _ := newTestAuthService(t)
	ctx := context.Background()
	account := &models.Account{ID: uuid.New(), Email: "a@x.io", PasswordHash: hashed(t, "pw1")}

	accounts.EXPECT().GetByEmail(gomock.Any(), "a@x.io").Return(account, nil).Times(2)
	accounts.EXPECT().GetByEmail(gomock.Any(), "ghost@x.io").Return(nil, pgx.ErrNoRows)

	id, ok, err := svc.ValidateLogin(ctx, "a@x.io", "pw1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, account.ID, id)

	_, ok, err = svc.ValidateLogin(ctx, "a@x.io", "wrong")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = svc.ValidateLogin(ctx, "ghost@x.io", "pw1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLogin(t *testing.T) {
	svc, accounts, jwtAuth := newTestAuthService(t)
	ctx := context.Background()
	account := &models.Account{ID: uuid.New(), Email: "a@x.io", PasswordHash: hashed(t, "pw1")}
	accounts.EXPECT().GetByEmail(gomock.Any(), "a@x.io").Return(account, nil).AnyTimes()

	t.Run("valid credentials", func(t *testing.T) {
		token, err := svc.Login(ctx, models.LoginRequest{Email: "a@x.io", Password: "pw1"})
		require.NoError(t, err)
		require.NotEmpty(t, token.Token)
		require.Equal(t, 3600, token.ExpiresIn)

		id, ok := jwtAuth.Verify(token.Token)
		require.True(t, ok)
		require.Equal(t, account.ID, id)
	})

	t.Run("wrong password", func(t *testing.T) {
		token, err := svc.Login(ctx, models.LoginRequest{Email: "a@x.io", Password: "nope"})
		require.Nil(t, token)
		var invalid *InvalidCredentialsError
		require.ErrorAs(t, err, &invalid)
		require.Equal(t, "Invalid email or password", invalid.Message)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Login(ctx, models.LoginRequest{})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Fields, 2)
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("success", func(t *testing.T) {
		svc, accounts, _ := newTestAuthService(t)
		account := &models.Account{ID: accountID, PasswordHash: hashed(t, "old")}

		accounts.EXPECT().GetByID(gomock.Any(), accountID).Return(account, nil)
		accounts.EXPECT().UpdatePassword(gomock.Any(), accountID, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ uuid.UUID, hash string) error {
				require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("new")))
				return nil
			})

		err := svc.ChangePassword(ctx, accountID, models.ChangePasswordRequest{OldPassword: "old", NewPassword: "new"})
		require.NoError(t, err)
	})

	t.Run("wrong current password", func(t *testing.T) {
		svc, accounts, _ := newTestAuthService(t)
		account := &models.Account{ID: accountID, PasswordHash: hashed(t, "old")}
		accounts.EXPECT().GetByID(gomock.Any(), accountID).Return(account, nil)

		err := svc.ChangePassword(ctx, accountID, models.ChangePasswordRequest{OldPassword: "guess", NewPassword: "new"})
		var invalid *InvalidCredentialsError
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("account gone", func(t *testing.T) {
		svc, accounts, _ := newTestAuthService(t)
		accounts.EXPECT().GetByID(gomock.Any(), accountID).Return(nil, pgx.ErrNoRows)

		err := svc.ChangePassword(ctx, accountID, models.ChangePasswordRequest{OldPassword: "old", NewPassword: "new"})
		var unauthorized *UnauthorizedError
		require.ErrorAs(t, err, &unauthorized)
	})

	t.Run("update fails", func(t *testing.T) {
		svc, accounts, _ := newTestAuthService(t)
		account := &models.Account{ID: accountID, PasswordHash: hashed(t, "old")}
		accounts.EXPECT().GetByID(gomock.Any(), accountID).Return(account, nil)
		accounts.EXPECT().UpdatePassword(gomock.Any(), accountID, gomock.Any()).Return(errors.New("timeout"))

		err := svc.ChangePassword(ctx, accountID, models.ChangePasswordRequest{OldPassword: "old", NewPassword: "new"})
		var storeErr *StoreError
		require.ErrorAs(t, err, &storeErr)
	})
}
