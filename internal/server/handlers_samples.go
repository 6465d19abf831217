package server

import (
	"net/http"

	"github.com/jonathan/article-agent/internal/types"
)

func (s *Server) handleCreateSample(w http.ResponseWriter, r *http.Request) {
	var sample types.StyleSample
	if !s.decode(w, r, &sample) {
		return
	}
	if err := s.catalog.CreateSample(r.Context(), &sample); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/samples/"+sample.ID.String())
	s.jsonResponse(w, http.StatusCreated, sample)
}

func (s *Server) sample(w http.ResponseWriter, r *http.Request) (*types.StyleSample, bool) {
	id, ok := s.pathID(w, r)
	if !ok {
		return nil, false
	}
	sample, err := s.catalog.Store().GetSample(r.Context(), id)
	if err == nil && sample == nil {
		err = &types.RecordNotFoundError{Kind: "style sample", Key: id.String()}
	}
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sample, true
}

func (s *Server) handleGetSample(w http.ResponseWriter, r *http.Request) {
	sample, ok := s.sample(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, sample)
}

// handleUpdateSample merges the body over the stored sample. The ID and
// channel cannot change.
func (s *Server) handleUpdateSample(w http.ResponseWriter, r *http.Request) {
	sample, ok := s.sample(w, r)
	if !ok {
		return
	}
	id, channelID := sample.ID, sample.ChannelID
	if !s.decode(w, r, sample) {
		return
	}
	sample.ID, sample.ChannelID = id, channelID
	if err := s.catalog.UpdateSample(r.Context(), sample); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sample)
}

func (s *Server) handleDeleteSample(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.catalog.Store().DeleteSample(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAnalyzeSample runs style analysis. ?force=true re-analyzes a sample
// that already has a profile.
func (s *Server) handleAnalyzeSample(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	force, err := queryBool(r, "force", false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sample, err := s.catalog.AnalyzeSample(r.Context(), id, force)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sample)
}
