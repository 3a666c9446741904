package auth

import (
	"net/http"
	"strings"
	"time"
)

const (
	AccessCookie   = "access_token_cookie"
	RefreshCookie  = "refresh_token_cookie"
	LoggedInCookie = "logged_in"
	RefreshHeader  = "X-Refresh-Token"
)

// Transport reads tokens from requests and writes token cookies to responses.
// When HeaderFirst is set a header token wins over a cookie token.
type Transport struct {
	HeaderFirst bool
	Secure      bool
	Domain      string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
}

// AccessToken returns the bearer token from Authorization or the access cookie.
func (t Transport) AccessToken(r *http.Request) string {
	return t.pick(bearer(r), cookieValue(r, AccessCookie))
}

// RefreshToken returns the refresh token from X-Refresh-Token or the refresh
// cookie. Authorization is never consulted; it carries the access token.
func (t Transport) RefreshToken(r *http.Request) string {
	return t.pick(strings.TrimSpace(r.Header.Get(RefreshHeader)), cookieValue(r, RefreshCookie))
}

func (t Transport) pick(header, cookie string) string {
	if t.HeaderFirst {
		if header != "" {
			return header
		}
		return cookie
	}
	if cookie != "" {
		return cookie
	}
	return header
}

func (t Transport) SetAccessCookies(w http.ResponseWriter, token string) {
	http.SetCookie(w, t.cookie(AccessCookie, token, t.AccessTTL, true))
	http.SetCookie(w, t.cookie(LoggedInCookie, "True", t.AccessTTL, false))
}

func (t Transport) SetRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, t.cookie(RefreshCookie, token, t.RefreshTTL, true))
}

// ClearCookies expires every auth cookie. It only asks the client to forget
// them; revocation happens in the denylist.
func (t Transport) ClearCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := t.cookie(name, "", 0, true)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
	loggedIn := t.cookie(LoggedInCookie, "", 0, false)
	loggedIn.MaxAge = -1
	loggedIn.Expires = time.Unix(0, 0)
	http.SetCookie(w, loggedIn)
}

func (t Transport) cookie(name, value string, ttl time.Duration, httpOnly bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   t.Domain,
		Secure:   t.Secure,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		c.MaxAge = int(ttl / time.Second)
		c.Expires = time.Now().Add(ttl).UTC()
	}
	return c
}

func bearer(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
