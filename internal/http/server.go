package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"edufam/academics/internal/academic"
	"edufam/academics/internal/access"
	"edufam/academics/internal/analytics"
	"edufam/academics/internal/auth"
	"edufam/academics/internal/cache"
	"edufam/academics/internal/config"
	"edufam/academics/internal/db"
	"edufam/academics/internal/metrics"
	"edufam/academics/internal/model"
	"edufam/academics/internal/relations"
	"edufam/academics/internal/workflow"
)

type Server struct {
	cfg       config.Config
	store     db.TxGateway
	resolver  *academic.Resolver
	periods   *academic.PeriodService
	access    *access.Validator
	relations *relations.Validator
	workflow  *workflow.Service
	summaries *cache.SummaryCache
	policy    analytics.Policy
	logger    *zap.Logger
}

func NewServer(cfg config.Config, store db.TxGateway, summaries *cache.SummaryCache, logger *zap.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if summaries == nil {
		summaries = cache.NewSummaryCache(nil, 0)
	}
	validator := relations.NewValidator(store)
	return &Server{
		cfg:       cfg,
		store:     store,
		resolver:  academic.NewResolver(store),
		periods:   academic.NewPeriodService(store),
		access:    access.NewValidator(store),
		relations: validator,
		workflow:  workflow.NewService(store, validator, logger, workflow.WithInvalidator(summaries)),
		summaries: summaries,
		policy:    analytics.DefaultPolicy(),
		logger:    logger,
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/context/resolve", s.handleResolveContext)
		r.Post("/context/curriculum", s.handleCheckCurriculum)
		r.Post("/scope/validate", s.handleValidateScope)
		r.Post("/relationships/validate", s.handleValidateRelationships)

		r.Get("/schools/{schoolId}/current-period", s.handleGetCurrentPeriod)
		r.Put("/schools/{schoolId}/current-period", s.handleSetCurrentPeriod)

		r.Get("/analytics/grades", s.handleGradeAnalytics)
		r.Get("/analytics/attendance", s.handleAttendanceAnalytics)

		r.Post("/enrollments", s.handleEnroll)
		r.Post("/subject-assignments", s.handleAssignSubject)
		r.Post("/promotions", s.handlePromote)
		r.Patch("/grades/{gradeId}/status", s.handleGradeStatus)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(started)))
	})
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func userIDFromRequest(r *http.Request) string {
	if claims := claimsFromContext(r.Context()); claims != nil {
		return claims.UserID
	}
	return ""
}

// authorize runs the scope check for the caller and writes a 403 when it fails.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, in model.AcademicContext, op access.Operation) bool {
	result, err := s.access.ValidateScope(r.Context(), userIDFromRequest(r), in, op)
	if err != nil {
		s.serverError(w, "validate scope", err)
		return false
	}
	metrics.Validation("scope", result.IsValid)
	if !result.IsValid {
		writeErrorMessage(w, http.StatusForbidden, "forbidden", result.Error)
		return false
	}
	return true
}

// callerSchool reads the caller's school from their profile. Workflow routes scope to it.
func (s *Server) callerSchool(w http.ResponseWriter, r *http.Request) (string, bool) {
	profile, err := s.store.GetProfile(r.Context(), userIDFromRequest(r))
	if errors.Is(err, db.ErrNotFound) {
		writeErrorMessage(w, http.StatusForbidden, "forbidden", "user profile not found")
		return "", false
	}
	if err != nil {
		s.serverError(w, "get profile", err)
		return "", false
	}
	return profile.SchoolID, true
}

func (s *Server) serverError(w http.ResponseWriter, action string, err error) {
	s.logger.Error(action+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "server_error")
}

// Helpers

func requireUUID(value string, field string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("invalid %s", field)
	}
	return parsed.String(), nil
}

func optionalUUID(value string, field string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return requireUUID(value, field)
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
