package server

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/aryannaik/reelmatch/internal/catalog"
	"github.com/aryannaik/reelmatch/internal/config"
	"github.com/aryannaik/reelmatch/internal/history"
	"github.com/aryannaik/reelmatch/internal/letterboxd"
	"github.com/aryannaik/reelmatch/internal/logging"
	"github.com/aryannaik/reelmatch/internal/similarity"
)

type Handlers struct {
	svc    Recommender
	limits config.RecommendConfig
}

func NewHandlers(svc Recommender, limits config.RecommendConfig) *Handlers {
	return &Handlers{svc: svc, limits: limits}
}

type titleRequest struct {
	MovieTitle         string `validate:"required,max=300"`
	NumRecommendations int    `validate:"min=1,ltefield=MaxK"`
	MaxK               int    `validate:"-"`
}

type similarRequest struct {
	ID                 int `validate:"min=0"`
	NumRecommendations int `validate:"min=1,ltefield=MaxK"`
	MaxK               int `validate:"-"`
}

type letterboxdRequest struct {
	UserName               string `validate:"required,max=64,username"`
	NumRecommendations     int    `validate:"min=1,ltefield=MaxK"`
	RecommendationsPerFilm int    `validate:"min=1,ltefield=MaxK"`
	MaxK                   int    `validate:"-"`
}

type recommendationsResponse struct {
	MovieTitle      string              `json:"movie_title,omitempty"`
	MovieID         *int                `json:"movie_id,omitempty"`
	Recommendations []similarity.Result `json:"recommendations"`
	Total           int                 `json:"total"`
}

type letterboxdResponse struct {
	UserName        string         `json:"user_name"`
	Recommendations []history.Seed `json:"recommendations"`
	Unmatched       []string       `json:"unmatched"`
	Total           int            `json:"total"`
}

// HandleRecommendations serves GET /api/recommendations?movie_title=&num_recommendations=
func (h *Handlers) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	k, err := intParam(r, "num_recommendations", h.limits.DefaultK)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	req := titleRequest{
		MovieTitle:         r.URL.Query().Get("movie_title"),
		NumRecommendations: k,
		MaxK:               h.limits.MaxK,
	}
	if msg := validateRequest(&req); msg != "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}

	results, err := h.svc.ByTitle(r.Context(), req.MovieTitle, req.NumRecommendations)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, recommendationsResponse{
		MovieTitle:      req.MovieTitle,
		Recommendations: results,
		Total:           len(results),
	})
}

// HandleSimilar serves GET /api/movies/{id}/similar?num_recommendations=
func (h *Handlers) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be an integer")
		return
	}
	k, err := intParam(r, "num_recommendations", h.limits.DefaultK)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	req := similarRequest{ID: id, NumRecommendations: k, MaxK: h.limits.MaxK}
	if msg := validateRequest(&req); msg != "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}

	results, err := h.svc.ByID(r.Context(), req.ID, req.NumRecommendations)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, recommendationsResponse{
		MovieID:         &req.ID,
		Recommendations: results,
		Total:           len(results),
	})
}

// HandleLetterboxd serves
// GET /api/letterboxd?user_name=&num_recommendations=&recommendations_per_film=
func (h *Handlers) HandleLetterboxd(w http.ResponseWriter, r *http.Request) {
	target, err := intParam(r, "num_recommendations", h.limits.DefaultTarget)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	perFilm, err := intParam(r, "recommendations_per_film", h.limits.DefaultPerTitleK)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	req := letterboxdRequest{
		UserName:               r.URL.Query().Get("user_name"),
		NumRecommendations:     target,
		RecommendationsPerFilm: perFilm,
		MaxK:                   h.limits.MaxK,
	}
	if msg := validateRequest(&req); msg != "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}

	run, err := h.svc.ForUser(r.Context(), req.UserName, req.NumRecommendations, req.RecommendationsPerFilm)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, letterboxdResponse{
		UserName:        req.UserName,
		Recommendations: run.Seeds,
		Unmatched:       run.Unmatched,
		Total:           len(run.Seeds),
	})
}

// HandleStatus serves GET /api/status.
func (h *Handlers) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Status())
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondServiceError maps service errors onto HTTP statuses.
func (h *Handlers) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.Ctx(r.Context())

	switch {
	case errors.Is(err, catalog.ErrNotFound):
		logger.Debug().Err(err).Msg("Movie not found")
		respondError(w, http.StatusNotFound, "MOVIE_NOT_FOUND", err.Error())
	case errors.Is(err, history.ErrEmptyHistory):
		logger.Debug().Err(err).Msg("Empty watch history")
		respondError(w, http.StatusNotFound, "EMPTY_HISTORY", err.Error())
	case errors.Is(err, letterboxd.ErrFetch):
		logger.Warn().Err(err).Msg("Watch history fetch failed")
		respondError(w, http.StatusNotFound, "HISTORY_UNAVAILABLE", letterboxd.ErrFetch.Error())
	default:
		logger.Error().Err(err).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// intParam reads an integer query parameter, returning def when absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

type errorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Error: apiError{Code: code, Message: message}})
}

var (
	validate     *validator.Validate
	validateOnce sync.Once

	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernameRe.MatchString(fl.Field().String())
		})
	})
	return validate
}

// validateRequest returns "" when v is valid, else a message naming each
// failing field.
func validateRequest(v any) string {
	err := getValidator().Struct(v)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

var paramNames = map[string]string{
	"MovieTitle":             "movie_title",
	"NumRecommendations":     "num_recommendations",
	"RecommendationsPerFilm": "recommendations_per_film",
	"UserName":               "user_name",
	"ID":                     "id",
}

func fieldMessage(fe validator.FieldError) string {
	name := paramNames[fe.Field()]
	if name == "" {
		name = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
	case "ltefield":
		return name + " exceeds the maximum allowed"
	case "username":
		return name + " may contain only letters, digits and underscores"
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}
