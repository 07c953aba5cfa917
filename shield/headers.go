package shield

import "net/http"

// HeaderConfig defines the security headers applied to every response.
type HeaderConfig struct {
	CSP                 string
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	PermissionsPolicy   string
}

// APIHeaders is the configuration for JSON and Markdown endpoints.
func APIHeaders() HeaderConfig {
	return HeaderConfig{
		CSP:                 "default-src 'none'; frame-ancestors 'none'",
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "no-referrer",
		PermissionsPolicy:   "camera=(), microphone=(), geolocation=()",
	}
}

// PageHeaders is the configuration for a served page snapshot. The page
// keeps its own styles and images but none of its scripts run, since the
// served markup is a capture and not the live application.
func PageHeaders() HeaderConfig {
	h := APIHeaders()
	h.CSP = "default-src 'self' data: https: http:; style-src 'self' 'unsafe-inline' https: http:; script-src 'none'; connect-src 'none'; frame-ancestors 'self'"
	h.XFrameOptions = "SAMEORIGIN"
	return h
}

// SecurityHeaders returns middleware that sets the configured security
// headers on every response. A later SecurityHeaders in the chain wins.
func SecurityHeaders(cfg HeaderConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			set := func(k, v string) {
				if v != "" {
					w.Header().Set(k, v)
				}
			}
			set("X-Content-Type-Options", cfg.XContentTypeOptions)
			set("X-Frame-Options", cfg.XFrameOptions)
			set("Referrer-Policy", cfg.ReferrerPolicy)
			set("Content-Security-Policy", cfg.CSP)
			set("Permissions-Policy", cfg.PermissionsPolicy)
			next.ServeHTTP(w, r)
		})
	}
}
