package www

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"fleettrack/store"
)

const sessionName = "fleettrack-session"

func newSessionStore(secret string) *sessions.CookieStore {
	if secret == "" {
		secret = "fleettrack-default-secret-change-me"
	}
	s := sessions.NewCookieStore([]byte(secret))
	s.Options.HttpOnly = true
	s.Options.Secure = false // runs behind the depot LAN proxy
	s.Options.SameSite = http.SameSiteLaxMode
	return s
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (h *Handlers) isAuthenticated(r *http.Request) bool {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return false
	}
	auth, ok := session.Values["authenticated"].(bool)
	return ok && auth
}

func (h *Handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.isAuthenticated(r) {
			h.jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken pulls the device token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (h *Handlers) ensureDefaultAdmin(db *store.DB) {
	exists, err := db.AdminUserExists()
	if err != nil || exists {
		return
	}
	hash, err := hashPassword("admin")
	if err != nil {
		return
	}
	db.CreateAdminUser("admin", hash)
}
