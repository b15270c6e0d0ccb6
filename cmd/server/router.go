package main

import (
	"net/http"

	"genesis-login/internal/handlers"
	"genesis-login/internal/middleware"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// SetupRouter configures and returns the HTTP router with all routes and middleware
func SetupRouter(
	sessionHandler *handlers.SessionHandler,
	authorizationHandler *handlers.AuthorizationHandler,
	logger *zap.Logger,
) *mux.Router {
	router := mux.NewRouter()

	// Add CORS middleware
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Add logging middleware
	router.Use(middleware.LoggingMiddleware(logger))

	// Session endpoints
	router.HandleFunc("/v1/login", sessionHandler.HandleLogin).Methods("POST", "OPTIONS")
	router.HandleFunc("/v1/refresh", sessionHandler.HandleRefresh).Methods("POST", "OPTIONS")
	router.HandleFunc("/v1/session", sessionHandler.HandleGetSession).Methods("GET", "OPTIONS")
	router.HandleFunc("/v1/logout", sessionHandler.HandleLogout).Methods("POST", "OPTIONS")

	// Authorization request endpoints
	router.HandleFunc("/v1/authorization", authorizationHandler.HandleGetAuthorization).Methods("GET", "OPTIONS")
	router.HandleFunc("/v1/authorization/confirm", authorizationHandler.HandleConfirm).Methods("POST", "OPTIONS")
	router.HandleFunc("/v1/authorization/reset", authorizationHandler.HandleReset).Methods("POST", "OPTIONS")

	// Health check
	// @Summary     Health check endpoint
	// @Description Returns OK if the service is running
	// @Tags        health
	// @Produce     text/plain
	// @Success     200  {string}  string  "OK"
	// @Router      /health [get]
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Swagger documentation
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	return router
}
