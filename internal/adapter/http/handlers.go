package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/explain"
	"github.com/couchcryptid/flood-risk-service/internal/facts"
	"github.com/couchcryptid/flood-risk-service/internal/pipeline"
	"github.com/couchcryptid/flood-risk-service/internal/projection"
	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

// envelope is the /api/v1 response wrapper.
type envelope struct {
	Status    string    `json:"status"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Stale     bool      `json:"stale,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type errorBody struct {
	Error string `json:"error"`
}

type reloadBody struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Source   string    `json:"source,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitzero"`
	Rules    int       `json:"rules,omitempty"`
}

// --- /api/v1 ---

func (s *Server) latest(w http.ResponseWriter, r *http.Request) (*pipeline.Assessment, bool) {
	a, err := s.assessments.Latest(r.Context())
	if a == nil {
		msg := "no assessment available"
		if err != nil {
			msg = err.Error()
		}
		s.logger.Error("prediction unavailable", "error", err)
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, envelope{
			Status: "error", Message: msg, Timestamp: domain.Now(),
		})
		return nil, false
	}
	return a, err != nil
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	a, stale := s.latest(w, r)
	if a == nil {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, envelope{
		Status: "success", Data: a, Stale: stale, Timestamp: domain.Now(),
	})
}

func (s *Server) handleCurrentReading(w http.ResponseWriter, r *http.Request) {
	a, stale := s.latest(w, r)
	if a == nil {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, envelope{
		Status: "success", Data: a.Reading, Stale: stale, Timestamp: domain.Now(),
	})
}

func (s *Server) handleMeteoHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	before, err1 := intParam(q.Get("days_before"), domain.DefaultHistoryDays)
	after, err2 := intParam(q.Get("days_after"), domain.DefaultHistoryDays)
	if err := errors.Join(err1, err2); err != nil {
		s.badRequest(w, "days_before and days_after must be integers")
		return
	}
	if s.opts.MeteoHistory == nil {
		s.historyUnavailable(w, errors.New("meteo history source not configured"))
		return
	}
	h, err := s.opts.MeteoHistory.FetchMeteoHistory(r.Context(), domain.Now(),
		domain.MeteoHistoryQuery{DaysBefore: before, DaysAfter: after})
	if err != nil {
		s.historyUnavailable(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, envelope{Status: "success", Data: h, Timestamp: domain.Now()})
}

func (s *Server) handleHydroHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subID, err := intParam(q.Get("station_id"), 0)
	if err != nil {
		s.badRequest(w, "station_id must be an integer")
		return
	}
	var y float64
	if raw := q.Get("station_y"); raw != "" {
		if y, err = strconv.ParseFloat(raw, 64); err != nil {
			s.badRequest(w, "station_y must be a number")
			return
		}
	}
	if s.opts.HydroHistory == nil {
		s.historyUnavailable(w, errors.New("hydro history source not configured"))
		return
	}
	h, err := s.opts.HydroHistory.FetchHydroHistory(r.Context(), domain.HydroHistoryQuery{SubID: subID, Y: y})
	if err != nil {
		s.historyUnavailable(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, envelope{Status: "success", Data: h, Timestamp: domain.Now()})
}

func (s *Server) historyUnavailable(w http.ResponseWriter, err error) {
	s.logger.Error("history unavailable", "error", err)
	sharedobs.WriteJSON(w, http.StatusServiceUnavailable, envelope{
		Status: "error", Message: err.Error(), Timestamp: domain.Now(),
	})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	sharedobs.WriteJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: msg, Timestamp: domain.Now()})
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// --- /api/ontology ---

func (s *Server) handleDescription(w http.ResponseWriter, _ *http.Request) {
	cat := s.catalogs.Catalog()
	if cat == nil {
		s.writeError(w, projection.ErrSchemaUnavailable)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, cat.Description())
}

// view is what the ontology endpoints read: the latest assessment when it
// was evaluated against the current catalog, the closed baseline otherwise.
type view struct {
	catalog *schema.Catalog
	facts   facts.Reader
	graph   *projection.Graph
}

func (s *Server) view(w http.ResponseWriter) (view, bool) {
	cat := s.catalogs.Catalog()
	if cat == nil {
		s.writeError(w, projection.ErrSchemaUnavailable)
		return view{}, false
	}
	if a := s.assessments.Current(); a != nil && a.Catalog() == cat {
		return view{catalog: cat, facts: a.Facts(), graph: &a.Graph}, true
	}
	st, err := pipeline.Baseline(cat, s.opts.MaxPasses)
	if err != nil {
		s.writeError(w, err)
		return view{}, false
	}
	return view{catalog: cat, facts: st}, true
}

func (s *Server) handleStatistics(w http.ResponseWriter, _ *http.Request) {
	v, ok := s.view(w)
	if !ok {
		return
	}
	st, err := projection.Stats(v.catalog, v.facts)
	s.respond(w, st, err)
}

func (s *Server) handleClasses(w http.ResponseWriter, _ *http.Request) {
	v, ok := s.view(w)
	if !ok {
		return
	}
	classes, err := projection.Classes(v.catalog, v.facts)
	s.respond(w, classes, err)
}

func (s *Server) handleObjectProperties(w http.ResponseWriter, _ *http.Request) {
	props, err := projection.Properties(s.catalogs.Catalog(), schema.ArityObject)
	s.respond(w, props, err)
}

func (s *Server) handleDataProperties(w http.ResponseWriter, _ *http.Request) {
	props, err := projection.Properties(s.catalogs.Catalog(), schema.ArityLiteral)
	s.respond(w, props, err)
}

func (s *Server) handleIndividuals(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w)
	if !ok {
		return
	}
	kind := facts.EntityID(r.URL.Query().Get("class"))
	if kind != "" && !v.catalog.HasKind(kind) {
		sharedobs.WriteJSON(w, http.StatusNotFound, errorBody{Error: "unknown class " + string(kind)})
		return
	}
	inds, err := projection.Individuals(v.catalog, v.facts, kind)
	s.respond(w, inds, err)
}

func (s *Server) handleVisualization(w http.ResponseWriter, _ *http.Request) {
	v, ok := s.view(w)
	if !ok {
		return
	}
	if v.graph != nil {
		sharedobs.WriteJSON(w, http.StatusOK, v.graph)
		return
	}
	g, err := projection.Project(v.catalog, v.facts, s.opts.MaxIndividuals)
	if err == nil {
		s.logger.Debug("graph projected", "nodes", len(g.Nodes), "links", len(g.Links), "truncated", g.Truncated)
	}
	s.respond(w, g, err)
}

func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	cat := s.catalogs.Catalog()
	if cat == nil {
		s.writeError(w, projection.ErrSchemaUnavailable)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, cat.Rules())
}

func (s *Server) handleExplanation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zone, property := q.Get("zone"), q.Get("property")
	if zone == "" || property == "" {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody{Error: "query parameters 'zone' and 'property' are required"})
		return
	}
	v, ok := s.view(w)
	if !ok {
		return
	}
	ex, err := s.explainer.Explain(v.facts, v.catalog.Rules(), facts.EntityID(zone), property)
	s.respond(w, ex, err)
}

func (s *Server) handleInferred(w http.ResponseWriter, _ *http.Request) {
	v, ok := s.view(w)
	if !ok {
		return
	}
	inf, err := projection.Inferences(v.catalog, v.facts)
	s.respond(w, inf, err)
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	cat, err := s.catalogs.Reload()
	if err != nil {
		status := http.StatusInternalServerError
		var le *schema.LoadError
		if errors.As(err, &le) {
			status = http.StatusUnprocessableEntity
		}
		sharedobs.WriteJSON(w, status, reloadBody{Success: false, Message: err.Error()})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, reloadBody{
		Success:  true,
		Message:  "schema reloaded",
		Source:   cat.Source(),
		LoadedAt: cat.LoadedAt(),
		Rules:    len(cat.Rules()),
	})
}

// --- helpers ---

func (s *Server) respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("api request failed", "error", err)
	}
	sharedobs.WriteJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, explain.ErrUnknownEntity), errors.Is(err, explain.ErrNoMatchingRule):
		return http.StatusNotFound
	case errors.Is(err, explain.ErrUnknownProperty):
		return http.StatusBadRequest
	case errors.Is(err, projection.ErrSchemaUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
