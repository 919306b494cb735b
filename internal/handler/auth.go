package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/coderDevDev/omr-checker-bubble-sheet/internal/i18n"
)

const adminUser = "admin"

// requireAdmin checks HTTP basic credentials against the configured bcrypt
// hash. With no hash configured every request passes.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	if h.config.AdminPasswordHash == "" {
		return next
	}
	hash := []byte(h.config.AdminPasswordHash)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || user != adminUser || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
			slog.Warn("rejected admin request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Basic realm="omrgrader"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": appI18n.T(r.Context(), "ErrUnauthorized"),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
