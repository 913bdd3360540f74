package repository

import (
	"context"

	"github.com/rpattn/tamperlog/internal/domain"
)

// SourceRepository reads the append-only tamper log. Implementations must be
// read-only.
type SourceRepository interface {
	// FetchPage returns up to limit rows with id > afterID ordered by id.
	FetchPage(ctx context.Context, afterID int64, limit int) (domain.Page, error)
	Ping(ctx context.Context) error
}

// TargetRepository is the enriched tamper log table. The table itself is the
// durable watermark.
type TargetRepository interface {
	// MaxTamperLogID returns the highest committed tamper_log_id, 0 if empty.
	MaxTamperLogID(ctx context.Context) (int64, error)
	// InsertBatch commits all rows in one transaction and returns the number
	// of rows inserted. Rows whose tamper_log_id already exists are ignored.
	InsertBatch(ctx context.Context, rows []domain.TargetRecord) (int64, error)
	Ping(ctx context.Context) error
}

// EventRepository stores monitoring events and answers the health probe.
type EventRepository interface {
	Insert(ctx context.Context, event domain.Event) error
	// Latest returns the newest event matching q, or nil when none exists.
	Latest(ctx context.Context, q domain.EventQuery) (*domain.Event, error)
	// AnyAtLevel reports whether an event matching q has one of levels.
	AnyAtLevel(ctx context.Context, q domain.EventQuery, levels ...string) (bool, error)
	Ping(ctx context.Context) error
}
