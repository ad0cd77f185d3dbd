package discovery

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/security"
)

// Handler serves a metadata document.
//
// When Metadata.Issuer is empty the issuer is the origin of the request, and
// endpoints given as absolute paths are resolved against the issuer.
type Handler struct {
	Metadata Metadata

	// TrustProxy honours X-Forwarded-Proto and X-Forwarded-Host when the
	// issuer is derived from the request.
	TrustProxy bool

	// RateLimiter throttles requests per remote address when set
	RateLimiter *security.RateLimiter

	Logger *slog.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.RateLimiter != nil && !h.RateLimiter.Allow(r.RemoteAddr) {
		h.logger().Warn("Rate limit exceeded on discovery endpoint", "remote_addr", r.RemoteAddr)
		w.Header().Set("Retry-After", "60")
		http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		return
	}

	md := h.Metadata.resolve(requestOrigin(r, h.TrustProxy))

	security.SetSecurityHeaders(w.Header())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(md); err != nil {
		h.logger().Debug("Failed to write metadata response", "error", err)
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// requestOrigin is the scheme and host the request was addressed to.
func requestOrigin(r *http.Request, trustProxy bool) string {
	req, err := oauth.NewRequestFromHTTP(r, trustProxy)
	if err != nil {
		return ""
	}
	u, err := url.Parse(req.URI)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
