package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campus-clubhouse/clubhouse-backend/shared/utils"
	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
)

// SessionCookieName is the cookie carrying the signed session token
const SessionCookieName = "clubhouse_session"

type contextKey string

const userContextKey contextKey = "authenticatedUser"

// SessionAuthConfig holds the session signing secret and the shared access
// code that gates the Officer role at login.
type SessionAuthConfig struct {
	Secret      string
	OfficerCode string
	TokenTTL    time.Duration
}

// Validate checks that the config is usable
func (c *SessionAuthConfig) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("session secret is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	return nil
}

// SessionAuthMiddleware authenticates requests via a signed session cookie
// (or bearer token) and injects the caller identity into the request context.
// Role claims are caller-asserted at login; the services decide what each
// role may do.
type SessionAuthMiddleware struct {
	config SessionAuthConfig
}

// NewSessionAuthMiddleware creates a session auth middleware
func NewSessionAuthMiddleware(config SessionAuthConfig) *SessionAuthMiddleware {
	if config.TokenTTL == 0 {
		config.TokenTTL = 6 * time.Hour
	}
	return &SessionAuthMiddleware{config: config}
}

type sessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Login validates the login request and returns a signed session token.
// The Officer role requires the configured access code; Member sessions
// need only an email.
func (m *SessionAuthMiddleware) Login(req *models.LoginRequest) (string, *models.AuthenticatedUser, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return "", nil, models.NewAppError(models.ErrKindInvalidInput, "Email required")
	}

	role := models.SessionRole(req.Role)
	switch role {
	case models.SessionRoleMember:
	case models.SessionRoleOfficer:
		if m.config.OfficerCode == "" || strings.TrimSpace(req.Code) != m.config.OfficerCode {
			return "", nil, models.NewAppError(models.ErrKindForbidden, "Invalid officer access code")
		}
	default:
		return "", nil, models.NewAppError(models.ErrKindInvalidRole, "Role must be Member or Officer")
	}

	now := time.Now()
	claims := sessionClaims{
		Email: email,
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, &models.AuthenticatedUser{Email: email, Role: role}, nil
}

// IssueCookie writes the session cookie on the response
func (m *SessionAuthMiddleware) IssueCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.config.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie
func (m *SessionAuthMiddleware) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// parseToken verifies the signature and expiry and returns the caller identity
func (m *SessionAuthMiddleware) parseToken(tokenString string) (*models.AuthenticatedUser, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return &models.AuthenticatedUser{
		Email: claims.Email,
		Role:  models.SessionRole(claims.Role),
		Name:  claims.Name,
	}, nil
}

// tokenFromRequest pulls the session token from the cookie or, failing that,
// an Authorization bearer header.
func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// Authenticate injects the caller identity into the context for the
// handlers. Requests without a session act as an anonymous Member, which
// unlocks the read endpoints; every mutating operation still trips the
// officer gate. A token that is present but invalid or expired is rejected
// outright.
func (m *SessionAuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			anonymous := &models.AuthenticatedUser{Role: models.SessionRoleMember}
			ctx := context.WithValue(r.Context(), userContextKey, anonymous)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		user, err := m.parseToken(tokenString)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired session")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserFromContext returns the authenticated caller, or an error when the
// request never passed through Authenticate.
func GetUserFromContext(ctx context.Context) (*models.AuthenticatedUser, error) {
	user, ok := ctx.Value(userContextKey).(*models.AuthenticatedUser)
	if !ok || user == nil {
		return nil, fmt.Errorf("no authenticated user in context")
	}
	return user, nil
}

// GetUserFromRequest is a convenience wrapper over GetUserFromContext
func GetUserFromRequest(r *http.Request) (*models.AuthenticatedUser, error) {
	return GetUserFromContext(r.Context())
}
