package http

import (
	"net/http"
	"strconv"

	"agrogestion/internal/core"
	"agrogestion/internal/log"
)

// handleAnnualSummary serves the yearly view, from the summary cache when
// possible. Confirmed writes invalidate the affected years.
func (s *Server) handleAnnualSummary(w http.ResponseWriter, r *http.Request, u core.User) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year < 1000 || year > 9999 {
		BadRequestError("year must have four digits").Write(w)
		return
	}

	if s.deps.Summaries != nil {
		if a, ok := s.deps.Summaries.Get(u.ID, year); ok {
			NewJSONResponse().Header("X-Cache", "HIT").Body(toAnnualJSON(a)).Write(w)
			return
		}
	}

	list, ok := s.deps.Expenses.Open(r.Context(), u.ID)
	if !ok {
		s.writeFailure(w, r, list.LastFailure())
		return
	}
	a := core.AnnualSummary(list.Expenses(), year)
	if s.deps.Summaries != nil {
		s.deps.Summaries.Set(u.ID, year, a)
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Annual summary computed",
		log.FieldOwnerID, u.ID,
		log.FieldYear, year)
	NewJSONResponse().Header("X-Cache", "MISS").Body(toAnnualJSON(a)).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, u core.User) {
	now := s.deps.Now()
	p := ParseMonthParams(r.URL.Query(), now)

	list, ok := s.deps.Expenses.Open(r.Context(), u.ID)
	if !ok {
		s.writeFailure(w, r, list.LastFailure())
		return
	}
	NewJSONResponse().Body(toOverviewJSON(core.Overview(list.Expenses(), p.Year, p.Month, now))).Write(w)
}
