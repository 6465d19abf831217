package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/article-agent/internal/types"
)

// Material listing limits
const (
	defaultMaterialLimit = 100
	maxMaterialLimit     = 500
)

func (s *Server) handleCreateMaterial(w http.ResponseWriter, r *http.Request) {
	var m types.Material
	if !s.decode(w, r, &m) {
		return
	}
	if err := s.catalog.AddMaterial(r.Context(), &m); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/materials/"+m.ID.String())
	s.jsonResponse(w, http.StatusCreated, m)
}

// handleListMaterials lists materials. ?channel_id narrows to one channel,
// ?global=true to materials without a channel, ?type to one material type.
func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter types.MaterialFilter

	if raw := q.Get("channel_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.writeError(w, r, &ErrValidation{Field: "channel_id", Message: "must be a UUID"})
			return
		}
		filter.ChannelID = &id
	}
	var err error
	if filter.GlobalOnly, err = queryBool(r, "global", false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.GlobalOnly && filter.ChannelID != nil {
		s.writeError(w, r, &ErrValidation{Field: "global", Message: "cannot be combined with channel_id"})
		return
	}
	filter.Type = q.Get("type")
	if filter.Limit, err = queryInt(r, "limit", defaultMaterialLimit); err != nil {
		s.writeError(w, r, err)
		return
	}
	filter.Limit = min(max(filter.Limit, 1), maxMaterialLimit)
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		s.writeError(w, r, err)
		return
	}

	materials, err := s.catalog.Store().ListMaterials(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if materials == nil {
		materials = []types.Material{}
	}
	s.jsonResponse(w, http.StatusOK, materials)
}

func (s *Server) handleGetMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	m, err := s.catalog.Store().GetMaterial(r.Context(), id)
	if err == nil && m == nil {
		err = &types.RecordNotFoundError{Kind: "material", Key: id.String()}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.catalog.Store().DeleteMaterial(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
