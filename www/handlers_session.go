package www

import (
	"net/http"
)

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.engine.DB().GetAdminUser(req.Username)
	if err != nil || !checkPassword(user.PasswordHash, req.Password) {
		h.jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["username"] = user.Username
	if err := session.Save(r, w); err != nil {
		h.jsonError(w, "session error", http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = false
	delete(session.Values, "username")
	session.Save(r, w)
	h.jsonOK(w, map[string]string{"status": "ok"})
}
