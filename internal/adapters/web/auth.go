package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"seva-invoicing/internal/app"
)

const sessionCookie = "auth_token"

type adminKey struct{}

// adminFromContext returns the signed-in admin email stored in ctx, or "".
func adminFromContext(ctx context.Context) string {
	v, _ := ctx.Value(adminKey{}).(string)
	return v
}

// sessionClaims is the JWT payload of the session cookie.
type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// session returns the admin email from a valid session cookie.
func (h *Handler) session(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid || claims.Email == "" {
		return "", false
	}
	return claims.Email, true
}

// RequireAuth is chi middleware for API routes. Returns 401 JSON when the
// session cookie is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, ok := h.session(r)
		if !ok {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey{}, email)))
	})
}

// RequireAuthBrowser is middleware for page routes. Unauthenticated requests
// are redirected to /login.
func (h *Handler) RequireAuthBrowser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, ok := h.session(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey{}, email)))
	})
}

// startSession signs a session token and sets it as an HTTP-only cookie.
func (h *Handler) startSession(w http.ResponseWriter, session *app.AdminSession) error {
	claims := &sessionClaims{
		Email: session.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   session.Email,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
	})
	return nil
}

func (h *Handler) endSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// authenticate runs the credential check and writes the failure response.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, email, password string) (*app.AdminSession, bool) {
	session, err := h.svc.Authenticate(r.Context(), email, password)
	switch {
	case errors.Is(err, app.ErrAuthNotConfigured):
		h.log.Error().Msg("login attempted but ADMIN_EMAIL and ADMIN_PASSWORD are not set")
		writeError(w, r, "admin credentials are not configured on the server", "AUTH_NOT_CONFIGURED", http.StatusInternalServerError)
		return nil, false
	case err != nil:
		writeError(w, r, "Invalid Admin ID or Password", "UNAUTHORIZED", http.StatusUnauthorized)
		return nil, false
	}
	return session, true
}

// login handles POST /api/auth/login.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	session, ok := h.authenticate(w, r, req.Email, req.Password)
	if !ok {
		return
	}
	if err := h.startSession(w, session); err != nil {
		writeError(w, r, "token generation failed", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, session)
}

// logout handles POST /api/auth/logout.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.endSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// me handles GET /api/auth/me.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"email": adminFromContext(r.Context())})
}

// loginPage handles GET /login. Signed-in admins go straight to the app.
func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.serveStatic(w, r, "login.html")
}

// loginFormSubmit handles POST /login from the HTML form.
func (h *Handler) loginFormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error=form", http.StatusSeeOther)
		return
	}
	session, err := h.svc.Authenticate(r.Context(), strings.TrimSpace(r.FormValue("email")), r.FormValue("password"))
	if err != nil {
		code := "invalid"
		if errors.Is(err, app.ErrAuthNotConfigured) {
			code = "unconfigured"
		}
		http.Redirect(w, r, "/login?error="+code, http.StatusSeeOther)
		return
	}
	if err := h.startSession(w, session); err != nil {
		http.Redirect(w, r, "/login?error=session", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// logoutPage handles POST /logout from the HTML shell.
func (h *Handler) logoutPage(w http.ResponseWriter, r *http.Request) {
	h.endSession(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
