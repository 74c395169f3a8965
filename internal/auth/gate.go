package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"weatherapi-server/internal/apperr"
	"weatherapi-server/internal/metrics"
	"weatherapi-server/internal/utils"
)

// IdentityResolver loads the current identity stored for a username. It
// returns an apperr NotFound error when the account no longer exists.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, username string) (Identity, error)
}

// Gate authenticates every request outside its public paths.
type Gate struct {
	tokens      *TokenService
	resolver    IdentityResolver
	logger      *slog.Logger
	publicPaths map[string]bool
}

func NewGate(tokens *TokenService, resolver IdentityResolver, logger *slog.Logger, publicPaths []string) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}
	return &Gate{
		tokens:      tokens,
		resolver:    resolver,
		logger:      logger,
		publicPaths: public,
	}
}

func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			g.reject(w, r, "missing_token", apperr.New(apperr.KindUnauthenticated, "Access token required"))
			return
		}

		claimed, err := g.tokens.Verify(token)
		if err != nil {
			reason := "invalid_token"
			if errors.Is(err, ErrTokenExpired) {
				reason = "expired_token"
			}
			g.logger.Debug("token rejected", "path", r.URL.Path, "error", err)
			g.reject(w, r, reason, apperr.New(apperr.KindInvalidToken, "Invalid or expired token"))
			return
		}

		// The account is re-read on every request so deleting it revokes
		// outstanding tokens at once.
		current, err := g.resolver.ResolveIdentity(r.Context(), claimed.Username)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				g.reject(w, r, "stale_token", apperr.New(apperr.KindInvalidToken, "Invalid or expired token"))
				return
			}
			utils.WriteAppError(w, r, err)
			return
		}
		if current.Role != claimed.Role {
			g.logger.Debug("role changed since token issue",
				"username", current.Username,
				"token_role", claimed.Role,
				"role", current.Role,
			)
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), current)))
	})
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, reason string, err *apperr.Error) {
	metrics.RecordAuthRejection(reason)
	g.logger.Info("request rejected",
		"method", r.Method,
		"path", r.URL.Path,
		"reason", reason,
	)
	utils.WriteAppError(w, r, err)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
