package api

import (
	"context"
	stdliberrors "errors"
	"net/http"
	"strings"

	"github.com/Ganeshg1313/askandsay-server/pkg/auth"
)

type identityContextKey struct{}

// requestIdentity is the authenticated user attached to a request.
type requestIdentity struct {
	UserID string
	Email  string
	Token  string
}

func identityFromContext(ctx context.Context) *requestIdentity {
	if ctx == nil {
		return nil
	}
	if id, ok := ctx.Value(identityContextKey{}).(*requestIdentity); ok {
		return id
	}
	return nil
}

// corsMiddleware adds CORS headers based on allowed origins configuration.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.isOriginAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// securityHeadersMiddleware adds standard security headers to responses.
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// authMiddleware requires a valid session token, from the Authorization
// header or the token cookie, and attaches the identity to the context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, stdliberrors.New("authentication required"))
			return
		}
		claims, err := s.tokens.VerifyToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, stdliberrors.New("invalid or expired token"))
			return
		}
		identity := &requestIdentity{
			UserID: claims.UserID,
			Email:  claims.Email,
			Token:  token,
		}
		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, err := auth.ExtractBearerToken(header); err == nil {
			return token
		}
		return ""
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
