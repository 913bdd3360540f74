// Package transform maps source tamper log rows onto the target schema.
package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/tamperlog/internal/domain"

	"github.com/google/uuid"
)

// Policy decides what a row failure does to the rest of its batch.
type Policy string

const (
	// PolicySkip drops the failing row and keeps the rest of the batch.
	PolicySkip Policy = "skip"
	// PolicyFail aborts the whole batch on the first failing row.
	PolicyFail Policy = "fail"
)

// ParsePolicy accepts "skip" or "fail" (case-insensitive).
func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case PolicySkip, PolicyFail:
		return p, nil
	default:
		return "", fmt.Errorf("unknown row failure policy %q", raw)
	}
}

// RowResult is the outcome of one row: either Record or Err is set.
type RowResult struct {
	Record domain.TargetRecord
	Err    *domain.RowTransformError
}

// Skipped reports whether the row was excluded.
func (r RowResult) Skipped() bool { return r.Err != nil }

// Result is a transformed batch. Records keeps input order.
type Result struct {
	Records []domain.TargetRecord
	Skipped []*domain.RowTransformError
}

// Transformer is a pure function of its inputs apart from the generated ids.
type Transformer struct {
	prefixes PrefixTable
	policy   Policy
	newID    func() uuid.UUID
}

// New creates a Transformer. An empty policy means PolicySkip.
func New(prefixes PrefixTable, policy Policy) *Transformer {
	if policy == "" {
		policy = PolicySkip
	}
	return &Transformer{
		prefixes: prefixes,
		policy:   policy,
		newID:    uuid.New,
	}
}

// Policy returns the configured row failure policy.
func (t *Transformer) Policy() Policy { return t.policy }

// Transform maps rows for the given actor with a single audit timestamp.
// Under PolicyFail the first row failure is returned as the error.
func (t *Transformer) Transform(rows []domain.SourceRecord, actor string, now time.Time) (Result, error) {
	result := Result{Records: make([]domain.TargetRecord, 0, len(rows))}
	if len(rows) == 0 {
		return result, nil
	}

	// CreatedOn and ModifiedOn are captured once per batch.
	stamp := wallClock(now)
	for _, row := range rows {
		res := t.TransformRow(row, actor, stamp)
		if res.Skipped() {
			if t.policy == PolicyFail {
				return Result{}, res.Err
			}
			result.Skipped = append(result.Skipped, res.Err)
			continue
		}
		result.Records = append(result.Records, res.Record)
	}
	return result, nil
}

// TransformRow maps a single row. stamp must already be second precision.
func (t *Transformer) TransformRow(row domain.SourceRecord, actor string, stamp time.Time) RowResult {
	fail := func(field string, err error) RowResult {
		return RowResult{Err: &domain.RowTransformError{TamperLogID: row.ID, Field: field, Err: err}}
	}

	tamperType, err := CoerceInt(row.TamperType)
	if err != nil {
		return fail("tamper_type", err)
	}
	disconnect, err := ParseTimestamp(row.DisconnectTime)
	if err != nil {
		return fail("disconnect_time", err)
	}
	reconnect, err := ParseTimestamp(row.ReconnectTime)
	if err != nil {
		return fail("reconnect_time", err)
	}

	serial := trimmed(row.SerialNumber)
	return RowResult{Record: domain.TargetRecord{
		ID:             strings.ToUpper(t.newID().String()),
		IsActive:       true,
		CreatedBy:      actor,
		CreatedOn:      stamp,
		ModifiedBy:     actor,
		ModifiedOn:     stamp,
		OwnerID:        actor,
		TamperLogID:    row.ID,
		Tusn:           trimmed(row.Tusn),
		SerialNumber:   serial,
		TamperType:     tamperType,
		DisconnectTime: disconnect,
		ReconnectTime:  reconnect,
		PartID:         t.prefixes.Resolve(serial),
	}}
}
