package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rzpsarthak13/dynamoplus/internal/store"
)

// Handler provides HTTP handlers over a store.
type Handler struct {
	store *store.Store
}

// NewHandler creates a new API handler.
func NewHandler(s *store.Store) *Handler {
	return &Handler{store: s}
}

// Router builds a router with every route registered and request logging enabled.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	router.Use(requestLoggerMiddleware)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[API] WARN: No route found for %s %s", r.Method, r.URL.Path)
		WriteJSONError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})
	return router
}

// requestLoggerMiddleware logs the method, URL path, and duration for each request.
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[API] %s %s took %s", r.Method, r.URL.Path, time.Since(start))
	})
}
