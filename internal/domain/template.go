package domain

import "time"

// TemplateStatus represents the activation state of a recurring-market
// template.
type TemplateStatus string

const (
	TemplateStatusActive TemplateStatus = "ACTIVE"
	TemplateStatusPaused TemplateStatus = "PAUSED"
)

// Template is a reusable recurring-market definition. The production engine
// mutates its failure counter, pause state, and last-produced bookkeeping but
// never deletes it.
type Template struct {
	ID           string
	Name         string
	Symbol       string // e.g. "BTC/USD"
	Period       int    // minutes; one of 15/60/240/1440/10080/43200
	AdvanceTime  int    // seconds before the boundary to start producing
	CategorySlug string
	SeriesID     string // external series linkage used for line pricing
	IsActive     bool
	Status       TemplateStatus
	FailureCount int
	PauseReason  string
	LastSlotID   string
	LastRunAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Paused reports whether the template must be skipped by the producer.
func (t Template) Paused() bool {
	return t.Status == TemplateStatusPaused || !t.IsActive
}

// BaseAsset returns the asset part of the template symbol, e.g. "BTC" for
// "BTC/USD".
func (t Template) BaseAsset() string {
	for i := 0; i < len(t.Symbol); i++ {
		if t.Symbol[i] == '/' || t.Symbol[i] == '-' {
			return t.Symbol[:i]
		}
	}
	return t.Symbol
}
