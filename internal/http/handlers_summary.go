package http

import (
	"net/http"
	"strings"

	"gerenciador/internal/aggregate"
	"gerenciador/internal/core"
	"gerenciador/internal/log"
	"gerenciador/internal/query"
)

func (s *Server) handleCurrentSummary(w http.ResponseWriter, r *http.Request) {
	totals, err := s.ledger.CurrentMonthTotals(r.Context(), s.ledger.Today())
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	NewJSONResponse().Data(totals).Write(w)
}

type annualResponse struct {
	Year           int                     `json:"year"`
	AvailableYears []int                   `json:"available_years"`
	CanPrevious    bool                    `json:"can_previous"`
	CanNext        bool                    `json:"can_next"`
	Summary        aggregate.AnnualSummary `json:"summary"`
}

// handleAnnualSummary clamps ?year= to the years that have data.
func (s *Server) handleAnnualSummary(w http.ResponseWriter, r *http.Request) {
	today := s.ledger.Today()
	requested, err := queryInt(r, "year", today.Year())
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	years, err := s.ledger.AvailableYears(r.Context(), today)
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	year := aggregate.ClampYear(years, requested)

	summary, err := s.ledger.AnnualSummary(r.Context(), year)
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	NewJSONResponse().Data(annualResponse{
		Year:           year,
		AvailableYears: years,
		CanPrevious:    aggregate.CanNavigate(years, year, -1),
		CanNext:        aggregate.CanNavigate(years, year, 1),
		Summary:        summary,
	}).Write(w)
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.ledger.AvailableYears(r.Context(), s.ledger.Today())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(map[string][]int{"years": years}).Write(w)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	res, err := s.ledger.Query(r.Context(), f)
	if err != nil {
		writeError(w, r, log.OpQuery, err)
		return
	}
	if res.Items == nil {
		res.Items = []query.Item{}
	}
	NewJSONResponse().Data(res).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.AllCategories(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	NewJSONResponse().Data(map[string][]string{"categories": cats}).Write(w)
}

// handleSchedule previews the installment dates for ?start=&count=.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	start := s.ledger.Today()
	if v := strings.TrimSpace(r.URL.Query().Get("start")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, r, log.OpParse, err)
			return
		}
		start = d
	}
	count, err := queryInt(r, "count", 0)
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}

	dates, err := s.ledger.Schedule(start, count)
	if err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"start": start,
		"count": len(dates),
		"dates": dates,
	}).Write(w)
}
