package auth

import (
	"fmt"
	"log/slog"
	"ludora/schema"
	"ludora/utils"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

type JwtManager struct {
	auth     *jwtauth.JWTAuth
	tokenTtl time.Duration
}

func NewJwtManager(secret []byte, tokenTtl time.Duration) *JwtManager {
	return &JwtManager{auth: jwtauth.New("HS256", secret, nil), tokenTtl: tokenTtl}
}

func (m *JwtManager) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verifier(m.auth)
}

// Authenticator mirrors jwtauth.Authenticator but writes the json error
// envelope instead of a plain text body.
func (m *JwtManager) Authenticator() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, _, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				utils.WriteErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "invalid or missing access token")
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

const userIdKey = "user_id"

func (m *JwtManager) CreateUserJwt(userId uuid.UUID) (string, error) {
	claims := map[string]interface{}{
		userIdKey: userId.String(),
		"exp":     time.Now().Add(m.tokenTtl),
	}
	_, token, err := m.auth.Encode(claims)
	if err != nil {
		slog.Error("error generating jwt", "error", err)
		return "", fmt.Errorf("error generating access token: %w", err)
	}
	return token, nil
}

func ValueFromContext(r *http.Request, key string) (string, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", fmt.Errorf("error retrieving auth claims: %w", err)
	}

	valueUncasted, ok := claims[key]
	if !ok {
		return "", fmt.Errorf("invalid token: unable to locate key %v in claims", key)
	}

	value, ok := valueUncasted.(string)
	if !ok {
		return "", fmt.Errorf("invalid token: value for key %v has invalid type", key)
	}

	return value, nil
}

func UserFromContext(r *http.Request) (schema.User, error) {
	userUntyped := r.Context().Value(userRequestContextKey)
	if userUntyped == nil {
		return schema.User{}, fmt.Errorf("user field not found in request context")
	}
	user, ok := userUntyped.(schema.User)
	if !ok {
		return schema.User{}, fmt.Errorf("invalid value for user field")
	}
	return user, nil
}
