package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string, tolerating
// thousands separators ("96,500.5").
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
// OutcomePrices is kept raw: the API sends it as a JSON-encoded string, a
// plain array, or an object depending on the endpoint.
type APIMarket struct {
	ID            string          `json:"id"`
	Question      string          `json:"question"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug"`
	Description   string          `json:"description"`
	Active        flexBool        `json:"active"`
	Closed        bool            `json:"closed"`
	EndDate       string          `json:"endDate"`
	EndDateISO    string          `json:"endDateIso"`
	VolumeNum     float64         `json:"volumeNum"`
	Volume        string          `json:"volume"`
	Line          *flexFloat      `json:"line"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`
	Events        []APIEvent      `json:"events"`
}

// APIEvent represents an event as returned by the Gamma API. An event groups
// one or more related markets.
type APIEvent struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Slug    string      `json:"slug"`
	Active  flexBool    `json:"active"`
	Closed  bool        `json:"closed"`
	Markets []APIMarket `json:"markets"`
}

// APISeries represents a recurring series as returned by the Gamma API.
type APISeries struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Slug       string     `json:"slug"`
	Recurrence string     `json:"recurrence"`
	Events     []APIEvent `json:"events"`
}

// ToCandidate converts an APIMarket to a domain.ExternalCandidate.
func (m *APIMarket) ToCandidate() domain.ExternalCandidate {
	c := domain.ExternalCandidate{
		ID:          m.ID,
		Question:    m.Question,
		Slug:        m.Slug,
		Description: m.Description,
		Closed:      m.Closed,
		Volume:      m.VolumeNum,
	}
	if c.Question == "" {
		c.Question = m.Title
	}
	if c.Volume == 0 && m.Volume != "" {
		if v, err := strconv.ParseFloat(m.Volume, 64); err == nil {
			c.Volume = v
		}
	}
	if t, ok := m.endTime(); ok {
		c.EndTime = &t
	}
	return c
}

func (m *APIMarket) endTime() (time.Time, bool) {
	for _, raw := range []string{m.EndDateISO, m.EndDate} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC(), true
		}
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// YesPrice extracts the YES outcome price from the market's outcomePrices
// field, which may be a JSON-encoded string, an array ([yes, no]), or an
// object ({"YES": ..., "NO": ...}). It falls back to the first nested event
// market when the top-level field is absent.
func (m *APIMarket) YesPrice() (float64, bool) {
	if p, ok := parseYesPrice(m.OutcomePrices); ok {
		return p, true
	}
	if len(m.Events) > 0 && len(m.Events[0].Markets) > 0 {
		return parseYesPrice(m.Events[0].Markets[0].OutcomePrices)
	}
	return 0, false
}

func parseYesPrice(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	// Double-encoded form: "\"[\\\"0.75\\\", \\\"0.25\\\"]\"".
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		return parseYesPrice(json.RawMessage(encoded))
	}

	// Array form: [0.75, 0.25] or ["0.75", "0.25"], YES first.
	var arr []any
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 {
		return validYesPrice(arr[0])
	}

	// Object form: {"YES": 0.75, "NO": 0.25}.
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"YES", "yes", "Yes"} {
			if v, ok := obj[key]; ok {
				return validYesPrice(v)
			}
		}
	}
	return 0, false
}

func validYesPrice(v any) (float64, bool) {
	var p float64
	switch t := v.(type) {
	case float64:
		p = t
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		p = parsed
	default:
		return 0, false
	}
	if p < 0 || p > 1 {
		return 0, false
	}
	return p, true
}
