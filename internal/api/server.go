package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/pillmate/pillmate/internal/cache"
	"github.com/pillmate/pillmate/internal/engine"
	"github.com/pillmate/pillmate/internal/models"
)

// Server provides the HTTP API over the course engine.
type Server struct {
	engine *engine.Engine
	cache  *cache.Cache
	logger *logrus.Logger
	mux    *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(eng *engine.Engine, c *cache.Cache, logger *logrus.Logger) *Server {
	s := &Server{engine: eng, cache: c, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/courses", s.handleListCourses)
	s.mux.HandleFunc("POST /api/courses", s.handleCreateCourse)
	s.mux.HandleFunc("GET /api/courses/{id}", s.handleGetCourse)
	s.mux.HandleFunc("PUT /api/courses/{id}", s.handleUpdateCourse)
	s.mux.HandleFunc("DELETE /api/courses/{id}", s.handleDeleteCourse)
	s.mux.HandleFunc("GET /api/courses/{id}/statistics", s.handleGetStatistics)
	s.mux.HandleFunc("POST /api/courses/{id}/slots/{slot}/toggle", s.handleToggleOccurrence)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondEngineError maps engine error kinds onto HTTP statuses.
func (s *Server) respondEngineError(w http.ResponseWriter, op string, err error) {
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		s.respondError(w, http.StatusBadRequest, verr.Reason)
		return
	}
	if errors.Is(err, engine.ErrCourseNotFound) {
		s.respondError(w, http.StatusNotFound, "course not found")
		return
	}

	s.logger.WithError(err).Errorf("failed to %s", op)
	s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to %s", op))
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// ---------------------------------------------------------------------------
// Courses
// ---------------------------------------------------------------------------

type courseRequest struct {
	Title                string                `json:"title"`
	TimesPerDay          int                   `json:"times_per_day"`
	DoseSlots            []models.DoseTemplate `json:"dose_slots"`
	PeriodType           string                `json:"period_type"` // days, weeks, months
	PeriodLength         int                   `json:"period_length"`
	DosageUnit           string                `json:"dosage_unit"`
	NotificationsEnabled bool                  `json:"notifications_enabled"`
	ImageRef             string                `json:"image_ref"`
}

func (req *courseRequest) draft() engine.CourseDraft {
	return engine.CourseDraft{
		Title:                req.Title,
		TimesPerDay:          req.TimesPerDay,
		DoseSlots:            req.DoseSlots,
		PeriodType:           models.PeriodType(req.PeriodType),
		PeriodLength:         req.PeriodLength,
		DosageUnit:           req.DosageUnit,
		NotificationsEnabled: req.NotificationsEnabled,
		ImageRef:             req.ImageRef,
	}
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.cache.Courses())
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	course, err := s.engine.CreateCourse(r.Context(), req.draft())
	if err != nil {
		s.respondEngineError(w, "create course", err)
		return
	}

	s.respondJSON(w, http.StatusCreated, course)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	course, ok := s.cache.Course(r.PathValue("id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "course not found")
		return
	}
	s.respondJSON(w, http.StatusOK, course)
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	course, err := s.engine.UpdateCourse(r.Context(), r.PathValue("id"), req.draft())
	if err != nil {
		if course == nil {
			s.respondEngineError(w, "update course", err)
			return
		}
		// The edit itself was persisted; a follow-up step (pruning, stats,
		// reminders) failed. Surface the accepted edit to the client.
		s.logger.WithError(err).Warn("course update cascade was incomplete")
	}

	s.respondJSON(w, http.StatusOK, course)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteCourse(r.Context(), r.PathValue("id")); err != nil {
		s.respondEngineError(w, "delete course", err)
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	course, ok := s.cache.Course(r.PathValue("id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "course not found")
		return
	}
	s.respondJSON(w, http.StatusOK, course.Statistics)
}

func (s *Server) handleToggleOccurrence(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(r.PathValue("slot"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "slot must be an integer")
		return
	}

	record, err := s.engine.ToggleOccurrence(r.Context(), r.PathValue("id"), slot)
	if err != nil {
		s.respondEngineError(w, "toggle occurrence", err)
		return
	}

	s.respondJSON(w, http.StatusOK, record)
}
