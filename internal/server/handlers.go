package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/sitesearch/internal/models"
)

type resultResponse struct {
	Result bool   `json:"result"`
	Error  string `json:"error,omitempty"`
}

type statisticsResponse struct {
	Result     bool               `json:"result"`
	Statistics *models.Statistics `json:"statistics"`
}

func (s *Server) handleStartIndexing(w http.ResponseWriter, r *http.Request) {
	if err := s.crawler.Start(r.Context()); err != nil {
		s.logger.Warn("start indexing failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resultResponse{Result: true})
}

func (s *Server) handleStopIndexing(w http.ResponseWriter, r *http.Request) {
	if err := s.crawler.Stop(r.Context()); err != nil {
		s.logger.Warn("stop indexing failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resultResponse{Result: true})
}

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	pageURL := r.FormValue("url")
	if pageURL == "" {
		s.respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	s.logger.Debug("index page request", zap.String("url", pageURL))
	if err := s.crawler.IndexPage(r.Context(), pageURL); err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resultResponse{Result: true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.SearchQuery{Query: q.Get("query"), Site: q.Get("site")}
	var err error
	if query.Offset, err = intParam(q.Get("offset")); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	if query.Limit, err = intParam(q.Get("limit")); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.String("site", query.Site))

	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			s.logger.Error("search failed", zap.Error(err))
		}
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.Statistics(r.Context())
	if err != nil {
		s.logger.Error("statistics failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, statisticsResponse{Result: true, Statistics: st})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sites": s.crawler.Progress()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrAlreadyRunning),
		errors.Is(err, models.ErrNotRunning):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoMatch):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, resultResponse{Result: false, Error: message})
}
