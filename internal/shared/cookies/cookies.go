package cookies

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"planets-engine/internal/shared/config"
)

// Settings describes the auth cookie issued to browser clients.
type Settings struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

func NewSettings(name string, auth config.AuthConfig, frontend config.FrontendConfig) Settings {
	return Settings{
		Name:     name,
		Domain:   extractDomain(frontend.URL),
		Secure:   auth.CookieSecure,
		SameSite: parseSameSite(auth.CookieSameSite),
		MaxAge:   auth.TokenExpiration,
	}
}

func SetAuthCookie(w http.ResponseWriter, s Settings, token string) {
	cookie := createAuthCookie(s)
	cookie.Value = token
	cookie.MaxAge = int(s.MaxAge.Seconds())

	http.SetCookie(w, cookie)
}

func ClearAuthCookie(w http.ResponseWriter, s Settings) {
	cookie := createAuthCookie(s)
	cookie.Value = ""
	cookie.MaxAge = -1

	http.SetCookie(w, cookie)
}

func createAuthCookie(s Settings) *http.Cookie {
	return &http.Cookie{
		Name:     s.Name,
		Path:     "/",
		Domain:   s.Domain,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: s.SameSite,
	}
}

func extractDomain(frontendURL string) string {
	parsedURL, err := url.Parse(frontendURL)
	if err != nil || parsedURL.Host == "" {
		return ""
	}

	host := parsedURL.Hostname()
	if host == "localhost" || host == "127.0.0.1" {
		return ""
	}

	return host
}

func parseSameSite(sameSite string) http.SameSite {
	switch strings.ToLower(sameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
