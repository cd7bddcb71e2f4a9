package main

import (
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/roomclocks/go/internal/httputil"
)

func setupServer(services *Services, config *Config) *http.Server {
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler: newHandler(services, config),
	}
}

func newHandler(services *Services, config *Config) http.Handler {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: config.corsOrigins(),
		AllowedHeaders: []string{"*"},
	})

	// Register services
	services.Rooms.RegisterRoutes(mux)
	services.Clocks.RegisterRoutes(mux)
	services.Gateway.RegisterRoutes(mux)

	// Add health check endpoint
	setupHealthCheck(mux)

	handler := httputil.RequestLogger(c.Handler(mux))

	// Setup HTTP/2 server
	return h2c.NewHandler(handler, &http2.Server{})
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
