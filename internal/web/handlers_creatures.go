package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/creature-etl/internal/core"
	"github.com/JonMunkholm/creature-etl/internal/store"
)

// ListResponse is a page of creatures.
type ListResponse struct {
	Items   []core.Creature `json:"items"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
	Total   int64           `json:"total"`
}

// ItemsResponse is an unpaged list of creatures.
type ItemsResponse struct {
	Items []core.Creature `json:"items"`
	Count int             `json:"count"`
}

func items(recs []core.Creature) ItemsResponse {
	return ItemsResponse{Items: recs, Count: len(recs)}
}

// handleListCreatures returns one page of creatures in load order.
func (s *Server) handleListCreatures(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := pagination(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	recs, err := s.repo.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	total, err := s.repo.Count(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Items: recs, Page: page, PerPage: perPage, Total: total})
}

// handleGetCreature returns the creature with a catalog id.
func (s *Server) handleGetCreature(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	c, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleGetByName returns the creature with an exact name.
func (s *Server) handleGetByName(w http.ResponseWriter, r *http.Request) {
	c, err := s.repo.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleByType lists creatures of a type. ?secondary=true matches the
// secondary type only.
func (s *Server) handleByType(w http.ResponseWriter, r *http.Request) {
	secondary, err := boolQuery(r, "secondary")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	recs, err := s.repo.ListByType(r.Context(), chi.URLParam(r, "type"), secondary)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items(recs))
}

func (s *Server) handleByGeneration(w http.ResponseWriter, r *http.Request) {
	gen, err := int64Param(r, "gen")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	recs, err := s.repo.ListByGeneration(r.Context(), gen)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items(recs))
}

func (s *Server) handleLegendary(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	recs, err := s.repo.ListLegendary(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items(recs))
}

// handlePowerRange lists creatures with min <= total_power <= max. Either
// bound may be omitted.
func (s *Server) handlePowerRange(w http.ResponseWriter, r *http.Request) {
	lo, err := optInt64Query(r, "min")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	hi, err := optInt64Query(r, "max")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if lo != nil && hi != nil && *lo > *hi {
		s.respondError(w, r, badParam("min", "greater than max"))
		return
	}

	recs, err := s.repo.ListByPowerRange(r.Context(), store.PowerRange{Min: lo, Max: hi})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items(recs))
}

// handleSearch matches ?q= against names and types.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, r, badParam("q", "empty"))
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	recs, err := s.repo.Search(r.Context(), q, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items(recs))
}

func (s *Server) handleCreateCreature(w http.ResponseWriter, r *http.Request) {
	var c core.Creature
	if err := decodeJSON(w, r, &c); err != nil {
		s.respondError(w, r, err)
		return
	}
	created, err := s.repo.Create(r.Context(), c)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateCreature applies the fields present in the body to the stored
// record. The id in the path wins over any id in the body.
func (s *Server) handleUpdateCreature(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	current, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	patched := *current
	if err := decodeJSON(w, r, &patched); err != nil {
		s.respondError(w, r, err)
		return
	}
	updated, err := s.repo.Update(r.Context(), id, patched)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCreature(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkResponse reports the outcome of a bulk create.
type BulkResponse struct {
	Created []core.Creature `json:"created"`
	Errors  []BulkItemError `json:"errors"`
}

// BulkItemError describes one rejected record.
type BulkItemError struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// handleBulkCreate stores every valid record of a JSON array. Rejected
// records are listed with their index; the rest are still created.
func (s *Server) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var recs []core.Creature
	if err := decodeJSON(w, r, &recs); err != nil {
		s.respondError(w, r, err)
		return
	}

	created, rejects, err := s.repo.BulkCreate(r.Context(), recs)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := BulkResponse{Created: created, Errors: make([]BulkItemError, 0, len(rejects))}
	if resp.Created == nil {
		resp.Created = []core.Creature{}
	}
	for _, e := range rejects {
		msg := core.MapError(e.Err)
		resp.Errors = append(resp.Errors, BulkItemError{
			Index:   e.Index,
			Name:    e.Name,
			Message: e.Err.Error(),
			Code:    msg.Code,
		})
	}

	status := http.StatusOK
	switch {
	case len(created) > 0:
		status = http.StatusCreated
	case len(rejects) > 0:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	st, err := s.repo.Statistics(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
