package domain

import (
	"database/sql"
	"time"
)

// SourceRecord is one row of the source tamper log table.
//
// TamperType and the two timestamps are kept exactly as the driver returned
// them ([]byte, string, int64, time.Time, ...). The transformer owns
// coercion so that one malformed value only affects its own row.
type SourceRecord struct {
	ID             int64
	Tusn           sql.NullString
	SerialNumber   sql.NullString
	TamperType     any
	DisconnectTime any
	ReconnectTime  any
}

// TargetRecord is the enriched row written to the target store.
type TargetRecord struct {
	ID             string     `json:"id"`
	IsActive       bool       `json:"is_active"`
	CreatedBy      string     `json:"created_by"`
	CreatedOn      time.Time  `json:"created_on"`
	ModifiedBy     string     `json:"modified_by"`
	ModifiedOn     time.Time  `json:"modified_on"`
	OwnerID        string     `json:"owner_id"`
	TamperLogID    int64      `json:"tamper_log_id"`
	Tusn           string     `json:"tusn"`
	SerialNumber   string     `json:"serial_number"`
	TamperType     int64      `json:"tamper_type"`
	DisconnectTime *time.Time `json:"disconnect_time,omitempty"`
	ReconnectTime  *time.Time `json:"reconnect_time,omitempty"`
	PartID         *string    `json:"part_id,omitempty"`
}

// Page is one bounded slice of source rows. Exhausted is set when the source
// returned fewer rows than requested, meaning it is caught up for now.
type Page struct {
	Records   []SourceRecord
	Exhausted bool
}

// MaxID returns the highest source id in the page, or 0 for an empty page.
func (p Page) MaxID() int64 {
	var maxID int64
	for _, r := range p.Records {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	return maxID
}

// RunSummary aggregates one ETL cycle.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Batches        int           `json:"batches"`
	RowsFetched    int64         `json:"rows_fetched"`
	RowsInserted   int64         `json:"rows_inserted"`
	RowsSkipped    int64         `json:"rows_skipped"`
	StartWatermark int64         `json:"start_watermark"`
	EndWatermark   int64         `json:"end_watermark"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}
