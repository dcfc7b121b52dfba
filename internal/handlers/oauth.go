package handlers

import (
	"html/template"
	"net/http"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/oauth2"
)

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Marketplace authorization</title></head>
<body>
<h1>Connect your seller account</h1>
<p><a href="{{.URL}}">Authorize access</a></p>
</body>
</html>
`))

// Home starts an authorization round trip: it binds a fresh state to the
// browser and links to the marketplace consent screen
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	auth, err := h.tokens.BeginAuthorization(r.Context())
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauth2.StateCookieName,
		Value:    auth.Cookie,
		Path:     "/",
		MaxAge:   int(h.tokens.StateTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := homeTemplate.Execute(w, auth); err != nil {
		h.logger.Error("Failed to render home page", err)
	}
}

// Callback completes the round trip: it checks the state, exchanges the code
// and answers with a summary of the stored token
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	code := query.Get("code")
	if code == "" {
		if denied := query.Get("error"); denied != "" {
			h.logger.WithContext(r.Context()).Warn("Authorization was not granted",
				logging.String("error", denied),
				logging.String("error_description", query.Get("error_description")),
			)
		}
		h.sendError(w, r, errors.MissingAuthorizationCodeError())
		return
	}

	var cookieValue string
	if cookie, err := r.Cookie(oauth2.StateCookieName); err == nil {
		cookieValue = cookie.Value
	}
	// The state is single use whatever the outcome.
	h.clearStateCookie(w)

	if err := h.tokens.VerifyState(cookieValue, query.Get("state")); err != nil {
		h.sendError(w, r, err)
		return
	}

	token, err := h.tokens.ExchangeCode(r.Context(), code)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSONResponse(w, token.Summary())
}

func (h *Handlers) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauth2.StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
