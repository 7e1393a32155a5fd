package middleware

import (
	"net"
	"net/http"
	"strings"
)

// SecurityHeaders adds OWASP-recommended security headers to all responses.
// Handlers may override them before writing, which the preview route does
// to allow framing under a sandbox policy.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'self'")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// HSTS only makes sense over TLS.
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// CORS allows cross-origin requests from the listed origins. "*" allows any
// origin. Preflight requests are answered directly.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed["*"] || allowed[origin]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Add("Vary", "Origin")
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP from the request.
//
// X-Forwarded-For and X-Real-IP are honored only when the TCP peer is one
// of trustedProxies (IPs or CIDRs); otherwise the peer address is used so
// clients cannot spoof their identity.
func ClientIP(r *http.Request, trustedProxies []string) string {
	directIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(directIP); err == nil {
		directIP = host
	}

	if len(trustedProxies) == 0 || !isTrusted(directIP, trustedProxies) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return directIP
}

func isTrusted(ip string, trusted []string) bool {
	parsed := net.ParseIP(ip)
	for _, t := range trusted {
		if t == ip {
			return true
		}
		if _, cidr, err := net.ParseCIDR(t); err == nil && parsed != nil && cidr.Contains(parsed) {
			return true
		}
	}
	return false
}
