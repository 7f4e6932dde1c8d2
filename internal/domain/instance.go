package domain

import "time"

// SlotStatus represents the lifecycle state of a produced market instance.
type SlotStatus string

const (
	SlotStatusOpen   SlotStatus = "OPEN"
	SlotStatusClosed SlotStatus = "CLOSED"
)

// MarketInstance is one materialized, time-bounded market produced from a
// template ("slot"). (TemplateID, EndTime) is unique per template; creation
// is idempotent on that key.
type MarketInstance struct {
	ID             string
	TemplateID     string
	Title          string
	Symbol         string
	Period         int // minutes
	StartTime      time.Time
	EndTime        time.Time
	Status         SlotStatus
	ReferencePrice float64
	ExternalID     *string // bound external market, nil until reconciled
	CategorySlug   string
	Source         string

	// AMM pool state seeded at creation.
	YesAmount   float64
	NoAmount    float64
	PoolK       float64
	InitialSeed float64

	// TradedVolume accumulates real user volume; a pool with nonzero
	// traded volume is never re-split by the odds resync.
	TradedVolume float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Historical reports whether the slot was produced for an already-elapsed
// window (created CLOSED with a zero reference price, skipping all external
// calls).
func (m MarketInstance) Historical() bool {
	return m.Status == SlotStatusClosed && m.ReferencePrice == 0
}

// ExternalCandidate is a read-only projection of a third-party market record
// considered for reconciliation. It is consulted, never owned.
type ExternalCandidate struct {
	ID          string
	Question    string
	Slug        string
	Description string
	EndTime     *time.Time
	Closed      bool
	Volume      float64
}

// Text returns the combined free-text descriptors used for alias matching.
func (c ExternalCandidate) Text() string {
	return c.Question + " " + c.Slug + " " + c.Description
}

// ExternalSeries is a read-only projection of a third-party recurring series
// record, the unit the harvester inspects for template discovery.
type ExternalSeries struct {
	ID         string
	Title      string
	Slug       string
	Recurrence string
}

// MatchResult pairs a candidate with its reconciliation score. It lives only
// for the duration of one production attempt.
type MatchResult struct {
	CandidateID string
	Score       float64
}

// PriceQuote is an oracle price observation.
type PriceQuote struct {
	Price  float64
	AsOf   time.Time
	Source string
}
