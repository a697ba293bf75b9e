package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const UserIDKey contextKey = "user_id"

const tokenIssuer = "blissai"

// SessionClaims carries the account id in the registered "sub" claim.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// JWTAuth issues and verifies HS256 session tokens. The secret is fixed for the
// lifetime of the process; changing it invalidates every outstanding token.
type JWTAuth struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTAuth(secret string, ttl time.Duration) *JWTAuth {
	return &JWTAuth{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the clock used for both issuing and verifying.
func (j *JWTAuth) WithClock(now func() time.Time) *JWTAuth {
	j.now = now
	return j
}

func (j *JWTAuth) TTL() time.Duration {
	return j.ttl
}

// Issue creates a token for accountID that expires after the configured TTL.
func (j *JWTAuth) Issue(accountID uuid.UUID) (string, time.Time, error) {
	// exp is encoded in whole seconds; issue on a second boundary so the
	// reported expiry matches the signed one.
	issuedAt := j.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(j.ttl)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify returns the account id of a well-formed, correctly signed, unexpired token.
func (j *JWTAuth) Verify(tokenStr string) (uuid.UUID, bool) {
	if tokenStr == "" {
		return uuid.Nil, false
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil || !token.Valid {
		return uuid.Nil, false
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil || accountID == uuid.Nil {
		return uuid.Nil, false
	}
	return accountID, true
}

// AccountFromRequest verifies the Authorization header without rejecting the request.
func (j *JWTAuth) AccountFromRequest(r *http.Request) (uuid.UUID, bool) {
	return j.Verify(TokenFromHeader(r.Header.Get("Authorization")))
}

// Middleware rejects the request with 401 unless it carries a valid token, and
// attaches the account id to the context otherwise.
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		accountID, ok := j.Verify(TokenFromHeader(authHeader))
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token", r)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromHeader accepts both "Bearer <token>" and a bare token.
func TokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return header
}

// GetUserID extracts user_id from request context
func GetUserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
