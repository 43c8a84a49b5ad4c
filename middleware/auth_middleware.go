package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/upb/semantic-retrieval/utils"
)

// devTenantHeader is honored only when no token secret is configured,
// so local development does not need to mint tokens
const devTenantHeader = "X-Tenant-ID"

// TenantClaims are the token claims the service cares about. The tenant ID is
// the only custom claim; everything else is standard registered claims.
type TenantClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves the calling tenant from a signed bearer token and
// places it on the request context. Handlers never read auth material
// themselves.
type AuthMiddleware struct {
	secret []byte
	issuer string
	logger *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. An empty secret disables
// token validation and enables the development tenant header.
func NewAuthMiddleware(secret, issuer string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(secret),
		issuer: issuer,
		logger: logger,
	}
}

// RequireTenant is a middleware that requires an authenticated tenant
func (m *AuthMiddleware) RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		if len(m.secret) == 0 {
			tenantID := strings.TrimSpace(r.Header.Get(devTenantHeader))
			if tenantID == "" {
				m.logger.Warn("missing tenant header",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Missing tenant identification")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTenantID(ctx, tenantID)))
			return
		}

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.validateToken(token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		if strings.TrimSpace(claims.TenantID) == "" {
			m.logger.Warn("token missing tenant claim",
				zap.String("request_id", requestID),
				zap.String("sub", claims.Subject))
			_ = utils.WriteForbidden(w, "Token carries no tenant")
			return
		}

		ctx = WithClaims(ctx, claims)
		ctx = WithTenantID(ctx, claims.TenantID)

		m.logger.Debug("tenant authenticated",
			zap.String("request_id", requestID),
			zap.String("tenant_id", claims.TenantID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validateToken parses and verifies an HMAC-signed token
func (m *AuthMiddleware) validateToken(tokenString string) (*TenantClaims, error) {
	claims := &TenantClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}

	return claims, nil
}

// extractBearerToken extracts the token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
