package http

import (
	"fmt"
	"net/http"

	"gerenciador/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	in, err := parseNewTransaction(p, s.ledger.Today())
	if err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}

	saved, err := s.ledger.CreateTransaction(r.Context(), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	NewJSONResponse().Status(http.StatusCreated).Data(map[string]any{
		"transactions": saved,
		"count":        len(saved),
	}).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleSetPaid reads "paid" from the body, falling back to the query
// string; it defaults to true.
func (s *Server) handleSetPaid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}

	raw := "true"
	if p.Has("paid") {
		raw = p.Get("paid")
	} else if r.URL.Query().Has("paid") {
		raw = r.URL.Query().Get("paid")
	}
	paid, err := parseBool(raw)
	if err != nil {
		writeError(w, r, log.OpParse, fmt.Errorf("%w: paid must be a boolean", errBadRequest))
		return
	}

	tx, err := s.ledger.SetPaid(r.Context(), id, paid)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(tx).Write(w)
}
