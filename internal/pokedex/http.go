package pokedex

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"Pokedex/pkg/kit"
)

type Server struct {
	Catalog *Catalog
	Log     *zap.Logger

	// Limiter, when set, applies to the /api routes only.
	Limiter *kit.IPRateLimiter
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := s.Catalog.Ping(ctx); err != nil {
			if s.Log != nil {
				s.Log.Warn("readyz failed", zap.Error(err))
			}
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/pokemon", func(rr chi.Router) {
		if s.Limiter != nil {
			rr.Use(s.Limiter.Middleware)
		}
		rr.Get("/", s.byID)
		rr.Get("/list", s.list)
		rr.Get("/random", s.random)
		rr.Get("/image", s.image)
	})

	return r
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 1
	}

	p, err := s.Catalog.List(r.Context(), q.Get("filters"), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) byID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "id is required", nil)
		return
	}

	e, err := s.Catalog.ByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, e)
}

func (s *Server) random(w http.ResponseWriter, r *http.Request) {
	e, err := s.Catalog.Random(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, e)
}

func (s *Server) image(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "name is required", nil)
		return
	}

	img, err := s.Catalog.ImageByName(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, img)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *ValidationError
		nf *NotFoundError
		ue *UpstreamError
	)

	switch {
	case errors.As(err, &ve):
		kit.WriteError(w, r, http.StatusBadRequest, ve.Msg, nil)
	case errors.As(err, &nf):
		kit.WriteError(w, r, http.StatusNotFound, nf.Msg, nil)
	case errors.As(err, &ue):
		s.logError("upstream failed", r, err)
		kit.WriteError(w, r, http.StatusBadGateway, "upstream error", nil)
	default:
		s.logError("request failed", r, err)
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) logError(msg string, r *http.Request, err error) {
	if s.Log == nil {
		return
	}
	s.Log.Error(msg, zap.Error(err), zap.String("path", r.URL.Path))
}
