package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/query"
)

// AggregationConfiguration is the wire form of an aggregation configuration.
type AggregationConfiguration struct {
	ID          string               `json:"id,omitempty"`
	Name        string               `json:"name,omitempty"`
	Collection  string               `json:"collection_name,omitempty"`
	Type        core.AggregationType `json:"type"`
	On          []core.Trigger       `json:"on,omitempty"`
	TargetField string               `json:"target_field,omitempty"`
	Matches     *query.Predicate     `json:"matches,omitempty"`
}

func newAggregationConfiguration(config core.AggregationConfiguration) (AggregationConfiguration, error) {
	out := AggregationConfiguration{
		ID:          config.ID,
		Name:        config.Name(),
		Collection:  config.Collection,
		Type:        config.Type,
		On:          config.On,
		TargetField: config.TargetField,
	}
	if config.Matches != nil {
		matches, err := query.EncodePredicate(config.Matches)
		if err != nil {
			return out, err
		}
		out.Matches = matches
	}
	return out, nil
}

// HandleCreateCollection handles POST /collections.
func (h *Handler) HandleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var collection core.Collection
	if err := decodeBody(r, &collection); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if collection.Name == "" || collection.IDKey == "" {
		WriteJSONError(w, http.StatusBadRequest, "name and id_key are required")
		return
	}

	created, err := h.store.CreateCollection(r.Context(), collection)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleListCollections handles GET /collections.
func (h *Handler) HandleListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.store.ListCollections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collections)
}

// HandleGetCollection handles GET /collections/{name}.
func (h *Handler) HandleGetCollection(w http.ResponseWriter, r *http.Request) {
	collection, err := h.store.GetCollection(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collection)
}

// HandleDeleteCollection handles DELETE /collections/{name}.
func (h *Handler) HandleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteCollection(r.Context(), mux.Vars(r)["name"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCreateIndex handles POST /collections/{name}/indexes.
func (h *Handler) HandleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var index core.Index
	if err := decodeBody(r, &index); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	index.Collection = mux.Vars(r)["name"]

	created, err := h.store.CreateIndex(r.Context(), index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleListIndexes handles GET /collections/{name}/indexes.
func (h *Handler) HandleListIndexes(w http.ResponseWriter, r *http.Request) {
	indexes, err := h.store.ListIndexes(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indexes)
}

// HandleDeleteIndex handles DELETE /indexes/{id}.
func (h *Handler) HandleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteIndex(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRebuildIndex handles POST /indexes/{id}/rebuild.
func (h *Handler) HandleRebuildIndex(w http.ResponseWriter, r *http.Request) {
	written, err := h.store.RebuildIndex(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"rows": written})
}

// HandleCreateAggregation handles POST /collections/{name}/aggregations.
func (h *Handler) HandleCreateAggregation(w http.ResponseWriter, r *http.Request) {
	var req AggregationConfiguration
	if err := decodeBody(r, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	config := core.AggregationConfiguration{
		Collection:  mux.Vars(r)["name"],
		Type:        req.Type,
		On:          req.On,
		TargetField: req.TargetField,
	}
	if req.Matches != nil {
		matches, err := req.Matches.Condition()
		if err != nil {
			writeError(w, err)
			return
		}
		config.Matches = matches
	}

	created, err := h.store.CreateAggregationConfiguration(r.Context(), config)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := newAggregationConfiguration(*created)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// HandleListAggregations handles GET /collections/{name}/aggregations.
// It returns the configurations together with their current values.
func (h *Handler) HandleListAggregations(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["name"]

	configs, err := h.store.ListAggregationConfigurations(r.Context(), collection)
	if err != nil {
		writeError(w, err)
		return
	}
	values, err := h.store.ListAggregations(r.Context(), collection)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]AggregationConfiguration, 0, len(configs))
	for _, config := range configs {
		view, err := newAggregationConfiguration(config)
		if err != nil {
			writeError(w, fmt.Errorf("aggregation %s: %w", config.Name(), err))
			return
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"configurations": views,
		"aggregations":   values,
	})
}

// HandleGetAggregation handles GET /aggregations/{name}.
func (h *Handler) HandleGetAggregation(w http.ResponseWriter, r *http.Request) {
	aggregation, err := h.store.GetAggregation(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregation)
}
