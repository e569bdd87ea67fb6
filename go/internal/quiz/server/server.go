package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// NewLoggingInterceptor logs every procedure call with its outcome.
func NewLoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			event := log.Debug()
			if err != nil {
				event = log.Warn().Err(err).Str("code", connect.CodeOf(err).String())
			}
			event.
				Str("procedure", req.Spec().Procedure).
				Dur("duration", time.Since(start)).
				Msg("rpc handled")
			return resp, err
		}
	}
}

// RegisterService mounts the quiz procedures on mux.
func RegisterService(mux *http.ServeMux, svc *Service) {
	path, handler := NewQuizServiceHandler(svc, connect.WithInterceptors(NewLoggingInterceptor()))
	mux.Handle(path, handler)
}

func RegisterHealthCheck(mux *http.ServeMux, checker *HealthChecker) {
	mux.Handle("/health", checker)
}

// NewHTTPServer wraps mux with CORS and serves HTTP/2 over cleartext.
func NewHTTPServer(port string, mux *http.ServeMux) *http.Server {
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
