package middleware

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

var allowedOrigins = map[string]bool{
	"https://fitlytics.app":  true,
	"http://localhost:3000":  true,
	"http://localhost:8080":  true,
	"test":                   true,
}

func Cors() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			userAgent := r.Header.Get("User-Agent")

			switch {
			case
				allowedOrigins[origin],
				strings.HasPrefix(userAgent, "Fitlytics/"),
				strings.HasPrefix(userAgent, "curl/"),
				strings.HasPrefix(userAgent, "test-agent"):
				{
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Headers",
						"Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization",
					)
					w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, PATCH, DELETE")
				}
			default:
				log.Warnf("CORS: origin not allowed for path [%s] and origin [%s]", r.URL.Path, origin)
				w.WriteHeader(http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
