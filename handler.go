package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/notam-cache/notam-cache/cache"
	"github.com/notam-cache/notam-cache/delta"
	"github.com/notam-cache/notam-cache/notam"
)

// maxBodySize caps delta-request bodies at 1 MiB.
const maxBodySize = 1 << 20

type server struct {
	router     *chi.Mux
	cache      *cache.ResponseCache
	variant    string
	format     string
	production bool
	log        zerolog.Logger
}

func newServer(responses *cache.ResponseCache, config Config, log zerolog.Logger) *server {
	s := &server{
		cache:      responses,
		variant:    config.Upstream.Variant,
		format:     config.Upstream.Format,
		production: config.Production,
		log:        log.With().Str("component", "http").Logger(),
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/", s.handleGet)
	r.Post("/", s.handleDelta)

	s.router = r
	return s
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleGet serves the full canonical response for a geographic query.
func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r, s.variant)
	if err != nil {
		s.writeError(w, err)
		return
	}
	q.Format = s.format

	payload, err := s.cache.GetOrFetch(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

// handleDelta serves only the records that changed relative to the
// snapshot in the request body.
func (s *server) handleDelta(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r, s.variant)
	if err != nil {
		s.writeError(w, err)
		return
	}
	q.Format = s.format

	var body struct {
		Known *notam.KnownSnapshot `json:"known"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid request body: %v", notam.ErrValidation, err))
		return
	}
	if body.Known.Len() == 0 {
		s.writeError(w, fmt.Errorf("%w: no valid entries in known snapshot", notam.ErrValidation))
		return
	}

	payload, err := s.cache.GetOrFetch(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var canonical notam.CanonicalResponse
	if err := json.Unmarshal(payload, &canonical); err != nil {
		s.writeError(w, fmt.Errorf("%w: stored response is not decodable: %v", notam.ErrProtocol, err))
		return
	}
	filtered, err := delta.Compute(canonical, body.Known)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(filtered); err != nil {
		s.log.Error().Err(err).Msg("Could not write delta response")
	}
}

// writeError maps the error kind to a status code and always answers
// with a single-key JSON body. In the production posture the message
// is reduced to a generic string per status.
func (s *server) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= 500 {
		s.log.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		s.log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}

	message := err.Error()
	if s.production {
		message = genericMessage(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		s.log.Error().Err(err).Msg("Could not write error response")
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, notam.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, notam.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, notam.ErrConfig),
		errors.Is(err, notam.ErrProtocol),
		errors.Is(err, notam.ErrStore):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func genericMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusBadGateway:
		return "upstream unavailable"
	default:
		return "internal server error"
	}
}
