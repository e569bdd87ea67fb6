package gateway

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSMiddleware lets browser displays on any origin read state and stats.
func CORSMiddleware(next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:         86400, // 24 hours
	})
	return c.Handler(next)
}
