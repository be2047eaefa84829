package server

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harun/pointlog/internal/observability"
	"github.com/harun/pointlog/internal/tracing"
	"github.com/harun/pointlog/pkg/area"
	"github.com/harun/pointlog/pkg/session"
)

const (
	sessionCookie = "sessionId"
	formMediaType = "application/x-www-form-urlencoded"
	maxFormBytes  = 64 << 10
	actionClear   = "clear"
)

// Error messages returned in {"error": ...} bodies.
const (
	msgContentTypeNull     = "Content-Type is null"
	msgContentTypeInvalid  = "Content-Type is not supported"
	msgMissingParameters   = "Missing required parameters"
	msgInvalidNumberFormat = "Invalid number format"
	msgInvalidData         = "Invalid data, try again"
	msgSessionNotFound     = "Session not found"
	msgMissingSessionID    = "Missing sessionId parameter"
	msgInternal            = "Internal server error"
)

type resultsResponse struct {
	Results []session.Record `json:"results"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCalculations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleHistory(w, r)
	case http.MethodPost:
		s.handleCalculate(w, r)
	case http.MethodDelete:
		if r.URL.Query().Get("action") == actionClear {
			s.handleClear(w, r)
			return
		}
		s.handleHistory(w, r)
	default:
		writeError(w, "Unsupported HTTP method: "+r.Method)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := sessionIDFromRequest(r)
	if id == "" {
		writeJSON(w, http.StatusOK, resultsResponse{Results: []session.Record{}})
		return
	}

	ctx := tracing.WithSessionID(r.Context(), id)
	writeJSON(w, http.StatusOK, resultsResponse{Results: s.store.History(ctx, id)})
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		writeError(w, msgContentTypeNull)
		return
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err != nil || mediaType != formMediaType {
		writeError(w, msgContentTypeInvalid)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, msgMissingParameters)
		return
	}

	xStr, yStr, rStr := r.PostForm.Get("xVal"), r.PostForm.Get("yVal"), r.PostForm.Get("rVal")
	if !r.PostForm.Has("xVal") || !r.PostForm.Has("yVal") || !r.PostForm.Has("rVal") {
		writeError(w, msgMissingParameters)
		return
	}

	start := time.Now()

	point, ok := parsePoint(xStr, yStr, rStr)
	if !ok {
		writeError(w, msgInvalidNumberFormat)
		return
	}
	if err := point.Validate(); err != nil {
		logger := tracing.LoggerFromContext(r.Context(), s.logger)
		logger.Debug().Err(err).Msg("Rejected point")
		writeError(w, msgInvalidData)
		return
	}

	inRegion := point.Contains()
	now := s.now()
	rec := session.NewRecord(point.X, point.Y, point.R, inRegion, now, time.Since(start))
	observability.RecordCalculation(inRegion)

	id := sessionIDFromRequest(r)
	if session.ValidateID(id) != nil {
		generated, err := s.newID(now)
		if err != nil {
			logger := tracing.LoggerFromContext(r.Context(), s.logger)
			logger.Error().Err(err).Msg("Failed to create session")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternal})
			return
		}
		id = generated
		observability.RecordSessionAudit(r.Context(), "session.create", clientIP(r), id, "success")
	}

	ctx := tracing.WithSessionID(r.Context(), id)
	logger := tracing.LoggerFromContext(ctx, s.logger)

	// A failed write keeps the record in memory; the client still gets it.
	if err := s.store.Append(ctx, id, rec); err != nil {
		logger.Warn().Err(err).Msg("Calculation not persisted")
	}

	logger.Debug().
		Float64("x", rec.X).
		Float64("y", rec.Y).
		Float64("r", rec.R).
		Bool("in_region", rec.InRegion).
		Float64("execution_ms", rec.DurationMillis).
		Msg("Processed calculation")

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, resultsResponse{Results: s.store.History(ctx, id)})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id := sessionIDFromRequest(r)
	if id == "" {
		writeError(w, msgMissingSessionID)
		return
	}

	ctx := tracing.WithSessionID(r.Context(), id)
	if !s.store.Clear(ctx, id) {
		observability.RecordSessionAudit(ctx, "session.clear", clientIP(r), id, "not_found")
		writeError(w, msgSessionNotFound)
		return
	}
	observability.RecordSessionAudit(ctx, "session.clear", clientIP(r), id, "success")

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Session cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"sessions":  s.store.Len(),
		"timestamp": time.Now().UnixMilli(),
	})
}

// sessionIDFromRequest reads the session cookie, falling back to the
// sessionId query parameter.
func sessionIDFromRequest(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if id := strings.TrimSpace(c.Value); id != "" {
			return id
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(sessionCookie))
}

func parsePoint(xStr, yStr, rStr string) (area.Point, bool) {
	x, err := strconv.ParseFloat(strings.TrimSpace(xStr), 64)
	if err != nil {
		return area.Point{}, false
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(yStr), 64)
	if err != nil {
		return area.Point{}, false
	}
	r, err := strconv.ParseFloat(strings.TrimSpace(rStr), 64)
	if err != nil {
		return area.Point{}, false
	}
	return area.Point{X: x, Y: y, R: r}, true
}

func writeError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
