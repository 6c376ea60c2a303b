package httpremote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
)

// Server is the reference cloud backend: the same logical store surface the
// hosted service exposes, backed by an in-memory document store. It exists
// for local development, the CLI's serve command and the transport tests.
type Server struct {
	store  *docStore
	secret []byte
	logger *logging.Logger

	// FeedHeartbeat bounds how long an idle SSE stream waits before
	// re-checking the client connection. Tests shorten it.
	FeedHeartbeat time.Duration
}

// NewServer creates a reference server validating session tokens against
// secret.
func NewServer(secret []byte) *Server {
	return &Server{
		store:         newDocStore(),
		secret:        secret,
		logger:        logging.WithComponent(logging.Component("remote-server")),
		FeedHeartbeat: 25 * time.Second,
	}
}

// Handler returns the chi router serving the remote store API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(requireSession(s.secret))

		r.Get("/v1/session", s.handleSession)

		r.Get("/v1/settings/{key}", s.handleGetSetting)
		r.Put("/v1/settings/{key}", s.handleSetSetting)

		r.Route("/v1/collections/{collection}", func(r chi.Router) {
			r.Post("/", s.handleAdd)
			r.Get("/", s.handleList)
			r.Get("/feed", s.handleFeed)
			r.Get("/{id}", s.handleGet)
			r.Put("/{id}", s.handleUpdate)
			r.Delete("/{id}", s.handleDelete)
		})
	})

	return r
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"userId": sessionUserID(r.Context())})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	collection := record.Collection(chi.URLParam(r, "collection"))

	var rec record.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "malformed record body", "VALIDATION")
		return
	}

	id, err := s.store.add(collection, rec)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error(), "CONFLICT")
		return
	}
	writeJSON(w, http.StatusCreated, addResponse{ID: id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	collection := record.Collection(chi.URLParam(r, "collection"))
	field := r.URL.Query().Get("field")
	value := r.URL.Query().Get("value")

	recs := s.store.getByField(collection, field, value)
	if recs == nil {
		recs = []record.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	collection := record.Collection(chi.URLParam(r, "collection"))
	id := chi.URLParam(r, "id")

	rec, ok := s.store.get(collection, id)
	if !ok {
		writeError(w, http.StatusNotFound, "document not found", "NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	collection := record.Collection(chi.URLParam(r, "collection"))
	id := chi.URLParam(r, "id")

	var rec record.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "malformed record body", "VALIDATION")
		return
	}

	found, err := s.store.update(collection, id, rec)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error(), "CONFLICT")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "document not found", "NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, addResponse{ID: id})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	collection := record.Collection(chi.URLParam(r, "collection"))
	s.store.delete(collection, chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.store.getSetting(chi.URLParam(r, "key"))
	if !ok {
		writeError(w, http.StatusNotFound, "setting not found", "NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, settingPayload{Value: raw})
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var payload settingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed setting body", "VALIDATION")
		return
	}
	s.store.setSetting(chi.URLParam(r, "key"), payload.Value)
	w.WriteHeader(http.StatusNoContent)
}

// handleFeed streams the matching result set over SSE: once immediately,
// then again after every mutation of the collection.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", "")
		return
	}

	collection := record.Collection(chi.URLParam(r, "collection"))
	field := r.URL.Query().Get("field")
	value := r.URL.Query().Get("value")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	var lastSent = ^uint64(0) // sentinel: always send the initial snapshot

	for {
		recs, seq, changed := s.store.snapshot(collection, field, value)
		if seq.Seq != lastSent {
			if recs == nil {
				recs = []record.Record{}
			}
			payload, err := json.Marshal(feedEvent{Records: recs, Cursor: seq.String()})
			if err != nil {
				s.logger.ErrorContext(ctx, "failed to encode feed event", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
			lastSent = seq.Seq
		}

		select {
		case <-ctx.Done():
			return
		case <-changed:
		case <-time.After(s.FeedHeartbeat):
			// Idle heartbeat keeps intermediaries from dropping the stream.
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}
