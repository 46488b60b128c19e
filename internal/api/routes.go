package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router.
// System routes are registered first so that they win over the document routes.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	// Collections
	router.HandleFunc("/collections", h.HandleCreateCollection).Methods("POST")
	router.HandleFunc("/collections", h.HandleListCollections).Methods("GET")
	router.HandleFunc("/collections/{name}", h.HandleGetCollection).Methods("GET")
	router.HandleFunc("/collections/{name}", h.HandleDeleteCollection).Methods("DELETE")

	// Indexes
	router.HandleFunc("/collections/{name}/indexes", h.HandleCreateIndex).Methods("POST")
	router.HandleFunc("/collections/{name}/indexes", h.HandleListIndexes).Methods("GET")
	router.HandleFunc("/indexes/{id}", h.HandleDeleteIndex).Methods("DELETE")
	router.HandleFunc("/indexes/{id}/rebuild", h.HandleRebuildIndex).Methods("POST")

	// Aggregations
	router.HandleFunc("/collections/{name}/aggregations", h.HandleCreateAggregation).Methods("POST")
	router.HandleFunc("/collections/{name}/aggregations", h.HandleListAggregations).Methods("GET")
	router.HandleFunc("/aggregations/{name}", h.HandleGetAggregation).Methods("GET")

	// Documents
	router.HandleFunc("/{collection}/query", h.HandleQuery).Methods("POST")
	router.HandleFunc("/{collection}", h.HandleCreate).Methods("POST")
	router.HandleFunc("/{collection}/{id}", h.HandleGet).Methods("GET")
	router.HandleFunc("/{collection}/{id}", h.HandleUpdate).Methods("PUT")
	router.HandleFunc("/{collection}/{id}", h.HandleDelete).Methods("DELETE")
}
