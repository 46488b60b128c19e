package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/query"
)

// QueryRequest is the body of a query.
type QueryRequest struct {
	Matches   json.RawMessage `json:"matches,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	StartFrom string          `json:"start_from,omitempty"`
}

// QueryResponse is one page of documents.
type QueryResponse struct {
	Data    []map[string]interface{} `json:"data"`
	LastKey string                   `json:"last_key,omitempty"`
}

// HandleCreate handles POST /{collection}.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]

	var document map[string]interface{}
	if err := decodeBody(r, &document); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, err := h.store.Create(r.Context(), collection, document)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record.Payload)
}

// HandleGet handles GET /{collection}/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	record, err := h.store.Get(r.Context(), vars["collection"], vars["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record.Payload)
}

// HandleUpdate handles PUT /{collection}/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var document map[string]interface{}
	if err := decodeBody(r, &document); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, err := h.store.Update(r.Context(), vars["collection"], vars["id"], document)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record.Payload)
}

// HandleDelete handles DELETE /{collection}/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.store.Delete(r.Context(), vars["collection"], vars["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleQuery handles POST /{collection}/query.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]

	var req QueryRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.Limit < 0 {
		writeError(w, fmt.Errorf("%w: limit cannot be negative", core.ErrInvalidQuery))
		return
	}

	condition, err := query.ParsePredicate(req.Matches)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.store.Query(r.Context(), collection, condition, req.Limit, req.StartFrom)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := QueryResponse{
		Data:    make([]map[string]interface{}, 0, len(result.Records)),
		LastKey: result.LastKey,
	}
	for _, record := range result.Records {
		resp.Data = append(resp.Data, record.Payload)
	}
	writeJSON(w, http.StatusOK, resp)
}
