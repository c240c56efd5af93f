// Package http provides HTTP server and handler implementations.
//
// This file implements request decoding: JSON or form bodies for mutations
// and query strings for reads.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gerenciador/internal/core"
	"gerenciador/internal/query"
	"gerenciador/internal/schedule"
	"gerenciador/internal/services"
)

const maxBodyBytes = 64 << 10

// RequestBodyParser reads a body once and serves values from it whether it
// was sent as JSON or form-encoded.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser reads at most maxBodyBytes of r's body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body. JSON is detected by its first byte.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", errBadRequest, p.err)
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}
	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: malformed JSON: %v", errBadRequest, err)
		}
		return p.err
	}
	p.formData, p.err = url.ParseQuery(trimmed)
	if p.err != nil {
		p.err = fmt.Errorf("%w: malformed form: %v", errBadRequest, p.err)
	}
	return p.err
}

// Get returns a sanitized string value, "" when absent or null.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		return sanitizeInput(stringValue(p.jsonData[key]))
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was sent with a non-null value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		return ok && v != nil
	}
	return p.formData != nil && p.formData.Has(key)
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// category keeps the nil/empty distinction for JSON. Form posts cannot
// express it, so an empty form field means uncategorized.
func (p *RequestBodyParser) category() *string {
	if !p.Has("category") {
		return nil
	}
	c := p.Get("category")
	if c == "" && !p.IsJSON() {
		return nil
	}
	return core.CategoryOf(c)
}

// parseNewTransaction builds the CreateTransaction input. The date
// defaults to today; a recurrence is requested by "recurrence" (mode) or
// "installments" (count). A fixed recurrence without a count gets
// schedule.MinInstallments.
func parseNewTransaction(p *RequestBodyParser, today core.Date) (services.NewTransaction, error) {
	in := services.NewTransaction{
		GroupKey:    p.Get("group_key"),
		Date:        today,
		Description: p.Get("description"),
		Category:    p.category(),
	}

	if v := p.Get("date"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return in, err
		}
		in.Date = d
	}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return in, err
	}
	in.Amount = amount

	if in.IsPaid, err = parseBool(p.Get("is_paid")); err != nil {
		return in, fmt.Errorf("%w: is_paid must be a boolean", errBadRequest)
	}

	modeRaw, countRaw := p.Get("recurrence"), p.Get("installments")
	if modeRaw == "" && countRaw == "" {
		return in, nil
	}
	mode, err := schedule.ParseMode(modeRaw)
	if err != nil {
		return in, fmt.Errorf("%w: %v", core.ErrInvalidCount, err)
	}
	count := 0
	if countRaw == "" && mode == schedule.Fixed {
		count = schedule.MinInstallments
	}
	if countRaw != "" {
		if count, err = strconv.Atoi(countRaw); err != nil {
			return in, fmt.Errorf("%w: installments %q", core.ErrInvalidCount, countRaw)
		}
	}
	in.Recurrence = &services.Recurrence{Mode: mode, Count: count}
	return in, nil
}

// parseFilter reads start, end, group (repeatable or comma separated) and
// category. A present but empty category filters for the empty label.
func parseFilter(q url.Values) (query.Filter, error) {
	var f query.Filter
	for _, bound := range []struct {
		name string
		dst  **core.Date
	}{{"start", &f.Start}, {"end", &f.End}} {
		v := strings.TrimSpace(q.Get(bound.name))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return f, err
		}
		*bound.dst = &d
	}

	for _, raw := range q["group"] {
		for _, key := range strings.Split(raw, ",") {
			if key = strings.TrimSpace(key); key != "" {
				f.GroupKeys = append(f.GroupKeys, key)
			}
		}
	}

	if q.Has("category") {
		f.Category = core.CategoryOf(sanitizeInput(q.Get("category")))
	}
	return f, nil
}
