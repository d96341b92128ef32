package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
	"github.com/aryan0dhankhar/insightdash/internal/security"
	"github.com/aryan0dhankhar/insightdash/internal/security/audit"
	"github.com/aryan0dhankhar/insightdash/internal/security/auth"
	"github.com/aryan0dhankhar/insightdash/internal/security/identity"
	"github.com/aryan0dhankhar/insightdash/internal/security/ratelimit"
)

// Authenticator resolves a session id into the caller it belongs to
type Authenticator interface {
	Authenticate(ctx context.Context, sid string) (identity.Principal, error)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// SessionID extracts the session id from a bearer token or, failing that, the session cookie.
// Websocket clients that cannot set headers pass the token as ?token=.
func SessionID(r *http.Request, tm *auth.TokenManager, cookies *auth.CookieStore) (string, bool) {
	tokenString := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		var err error
		if tokenString, err = auth.ExtractToken(header); err != nil {
			return "", false
		}
	}
	if tokenString != "" {
		claims, err := tm.ValidateToken(tokenString)
		if err != nil {
			return "", false
		}
		return claims.SessionID, true
	}
	return cookies.SessionID(r)
}

// RequireSession rejects requests without a live session before any protected handler runs
func RequireSession(authn Authenticator, tm *auth.TokenManager, cookies *auth.CookieStore, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, ok := SessionID(r, tm, cookies)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}

			principal, err := authn.Authenticate(r.Context(), sid)
			if err != nil {
				if !errors.Is(err, apperrors.ErrUnauthenticated) {
					log.Error("session lookup failed",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
				writeError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequirePermission checks the caller's role; it must run after RequireSession
func RequirePermission(authz *security.AuthorizationService, perm security.Permission, auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := identity.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			if err := authz.ValidatePermission(security.Role(p.Role), perm); err != nil {
				auditLog.LogDenied(r.Context(), p.UserID, string(perm))
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginRateLimit throttles credential attempts per client address and username.
// A successful login clears only the budget of the account that signed in.
func LoginRateLimit(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return throttle(limiter, log, true, func(r *http.Request) (string, error) {
		username, err := peekUsername(r)
		if err != nil {
			return "", err
		}
		return "login|" + ClientIP(r) + "|" + strings.ToLower(username), nil
	})
}

// RegisterRateLimit throttles account creation per client address; its budget is never cleared early
func RegisterRateLimit(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return throttle(limiter, log, false, func(r *http.Request) (string, error) {
		return "register|" + ClientIP(r), nil
	})
}

func throttle(limiter *ratelimit.Limiter, log *slog.Logger, resetOnSuccess bool, keyFor func(*http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := keyFor(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if !limiter.Allow(key) {
				log.Warn("auth rate limit exceeded",
					slog.String("ip", ClientIP(r)),
					slog.String("path", r.URL.Path),
				)
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			if resetOnSuccess && sw.status < 300 {
				limiter.Reset(key)
			}
		})
	}
}

// peekUsername reads the username from a JSON body and restores the body for the handler
func peekUsername(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var creds struct {
		Username string `json:"username"`
	}
	// malformed bodies share one budget and are rejected by the handler
	_ = json.Unmarshal(body, &creds)
	return strings.TrimSpace(creds.Username), nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// ClientIP returns the remote address without its port
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequestID attaches a request ID to the context and response headers for traceability
func RequestID(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", reqID)

			start := time.Now()
			next.ServeHTTP(w, r.WithContext(identity.WithRequestID(r.Context(), reqID)))

			log.Info("request completed",
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Duration("duration_ms", time.Since(start)),
			)
		})
	}
}

// CORS honors the configured origins; credentials are allowed so the session cookie travels
func CORS(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if originAllowed(allowed, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Request-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
