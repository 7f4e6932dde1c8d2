package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

// maxArchiveBatch bounds how many closed slots one archival pass exports.
const maxArchiveBatch = 10000

// InstanceArchiveStore is the read access the archiver needs: just the
// time-ranged listing of closed slots.
type InstanceArchiveStore interface {
	ListClosedBefore(ctx context.Context, before time.Time, limit int) ([]domain.MarketInstance, error)
}

// ArchiveImpl implements domain.Archiver by exporting old closed market
// instances as JSONL to the object store.
//
// Deletion of the archived rows from the primary store is intentionally NOT
// performed here; that is a separate, explicit step after the archive has
// been verified.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	instances InstanceArchiveStore
	logger    *slog.Logger
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, instances InstanceArchiveStore, logger *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		instances: instances,
		logger:    logger,
	}
}

// archiveRecord is the stable serialized shape of one archived slot. Domain
// structs carry no JSON tags, so the schema is pinned here.
type archiveRecord struct {
	ID             string    `json:"id"`
	TemplateID     string    `json:"template_id"`
	Title          string    `json:"title"`
	Symbol         string    `json:"symbol"`
	PeriodMinutes  int       `json:"period_minutes"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `json:"status"`
	ReferencePrice float64   `json:"reference_price"`
	ExternalID     *string   `json:"external_id,omitempty"`
	YesAmount      float64   `json:"yes_amount"`
	NoAmount       float64   `json:"no_amount"`
	InitialSeed    float64   `json:"initial_seed"`
	TradedVolume   float64   `json:"traded_volume"`
}

// ArchiveInstances exports closed slots that ended before the cutoff to
// archive/instances/YYYY-MM-DD.jsonl and returns the number archived.
func (a *ArchiveImpl) ArchiveInstances(ctx context.Context, before time.Time) (int64, error) {
	instances, err := a.instances.ListClosedBefore(ctx, before, maxArchiveBatch)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive instances query: %w", err)
	}
	if len(instances) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range instances {
		if err := enc.Encode(toArchiveRecord(&instances[i])); err != nil {
			return 0, fmt.Errorf("s3blob: archive instances encode record %d: %w", i, err)
		}
	}

	path := fmt.Sprintf("archive/instances/%s.jsonl", before.UTC().Format("2006-01-02"))
	if int64(buf.Len()) >= minPartSize {
		err = a.writer.PutMultipart(ctx, path, &buf, minPartSize)
	} else {
		err = a.writer.Put(ctx, path, &buf, "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive instances upload: %w", err)
	}

	a.logger.Info("archived market instances",
		slog.String("path", path),
		slog.Int("count", len(instances)),
	)
	return int64(len(instances)), nil
}

func toArchiveRecord(m *domain.MarketInstance) archiveRecord {
	return archiveRecord{
		ID:             m.ID,
		TemplateID:     m.TemplateID,
		Title:          m.Title,
		Symbol:         m.Symbol,
		PeriodMinutes:  m.Period,
		StartTime:      m.StartTime,
		EndTime:        m.EndTime,
		Status:         string(m.Status),
		ReferencePrice: m.ReferencePrice,
		ExternalID:     m.ExternalID,
		YesAmount:      m.YesAmount,
		NoAmount:       m.NoAmount,
		InitialSeed:    m.InitialSeed,
		TradedVolume:   m.TradedVolume,
	}
}
