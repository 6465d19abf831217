package server

import (
	"net/http"
	"strings"

	"github.com/jonathan/article-agent/internal/types"
)

type importSampleRequest struct {
	URL  string   `json:"url"`
	Tags []string `json:"tags,omitempty"`
	// Analyze runs style analysis right after the import.
	Analyze bool `json:"analyze,omitempty"`
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	all, err := queryBool(r, "all", false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	channels, err := s.catalog.Store().ListChannels(r.Context(), all)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if channels == nil {
		channels = []types.Channel{}
	}
	s.jsonResponse(w, http.StatusOK, channels)
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var ch types.Channel
	if !s.decode(w, r, &ch) {
		return
	}
	if err := s.catalog.CreateChannel(r.Context(), &ch); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/channels/"+ch.ID.String())
	s.jsonResponse(w, http.StatusCreated, ch)
}

// channel loads the {id} channel, which may be given as ID or slug.
func (s *Server) channel(w http.ResponseWriter, r *http.Request) (*types.Channel, bool) {
	ref := r.PathValue("id")
	ch, err := s.catalog.ResolveChannel(r.Context(), ref)
	if err == nil && ch == nil {
		err = &types.RecordNotFoundError{Kind: "channel", Key: ref}
	}
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return ch, true
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channel(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, ch)
}

// handleUpdateChannel merges the body over the stored channel. The ID and
// slug cannot change.
func (s *Server) handleUpdateChannel(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channel(w, r)
	if !ok {
		return
	}
	id, slug := ch.ID, ch.Slug
	if !s.decode(w, r, ch) {
		return
	}
	if ch.Slug != slug && strings.ToLower(strings.TrimSpace(ch.Slug)) != slug {
		s.writeError(w, r, &ErrValidation{Field: "slug", Message: "cannot be changed"})
		return
	}
	ch.ID, ch.Slug = id, slug
	if err := s.catalog.UpdateChannel(r.Context(), ch); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ch)
}

// handleDeactivateChannel soft-deletes a channel. Existing tasks keep it;
// new tasks are refused.
func (s *Server) handleDeactivateChannel(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channel(w, r)
	if !ok {
		return
	}
	if err := s.catalog.Store().DeactivateChannel(r.Context(), ch.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListChannelSamples(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channel(w, r)
	if !ok {
		return
	}
	samples, err := s.catalog.Store().ListSamples(r.Context(), ch.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if samples == nil {
		samples = []types.StyleSample{}
	}
	s.jsonResponse(w, http.StatusOK, samples)
}

func (s *Server) handleImportSample(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channel(w, r)
	if !ok {
		return
	}
	var req importSampleRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, r, &ErrValidation{Field: "url", Message: "is required"})
		return
	}

	sample, err := s.catalog.ImportSample(r.Context(), ch.ID, strings.TrimSpace(req.URL), req.Tags)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Analyze {
		analyzed, err := s.catalog.AnalyzeSample(r.Context(), sample.ID, false)
		if err != nil {
			// The sample is stored; analysis can be retried separately.
			s.logger.Warn("analysis after import failed", "sample_id", sample.ID, "error", err)
		} else {
			sample = analyzed
		}
	}
	w.Header().Set("Location", "/samples/"+sample.ID.String())
	s.jsonResponse(w, http.StatusCreated, sample)
}
