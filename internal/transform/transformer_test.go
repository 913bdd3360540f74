package transform

import (
	"database/sql"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/tamperlog/internal/domain"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

const actor = "8F14E45F-CEEA-467F-A0E6-7B4D1C2F3A90"

func validRow(id int64) domain.SourceRecord {
	return domain.SourceRecord{
		ID:             id,
		Tusn:           sql.NullString{String: "  TU-1  ", Valid: true},
		SerialNumber:   sql.NullString{String: " 0512345 ", Valid: true},
		TamperType:     int64(2),
		DisconnectTime: []byte("2024-03-01 10:15:30"),
		ReconnectTime:  "0000-00-00 00:00:00",
	}
}

func TestParseTimestampMissingValuesAreNull(t *testing.T) {
	inputs := []any{
		nil,
		"",
		"   ",
		"0000-00-00 00:00:00",
		"2000-00-00 00:00:00",
		[]byte("0000-00-00"),
		time.Time{},
		math.NaN(),
		mysql.NullTime{},
		sql.NullTime{},
		sql.NullString{},
	}
	for _, in := range inputs {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%#v) returned error: %v", in, err)
		}
		if got != nil {
			t.Fatalf("ParseTimestamp(%#v) = %v, expected nil", in, *got)
		}
	}
}

func TestParseTimestampWellFormed(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)

	got, err := ParseTimestamp("2024-03-01 10:15:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseTimestampStringAndNativeAgree(t *testing.T) {
	tehran := time.FixedZone("IRST", 3*3600+1800)
	native := time.Date(2024, 3, 1, 10, 15, 30, 987654000, tehran)

	fromNative, err := ParseTimestamp(native)
	if err != nil {
		t.Fatalf("native: %v", err)
	}
	fromText, err := ParseTimestamp("2024-03-01 10:15:30.987654")
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	fromNullTime, err := ParseTimestamp(mysql.NullTime{Time: native, Valid: true})
	if err != nil {
		t.Fatalf("null time: %v", err)
	}

	if *fromNative != *fromText || *fromText != *fromNullTime {
		t.Fatalf("normalised values differ: native=%v text=%v nulltime=%v", fromNative, fromText, fromNullTime)
	}
	if fromText.Nanosecond() != 0 {
		t.Fatalf("expected second precision, got %d ns", fromText.Nanosecond())
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	_, err := ParseTimestamp("yesterday-ish")
	if !errors.Is(err, ErrUnparseableTimestamp) {
		t.Fatalf("expected ErrUnparseableTimestamp, got %v", err)
	}
}

func TestCoerceInt(t *testing.T) {
	ok := map[string]any{
		"int64":   int64(3),
		"bytes":   []byte("4"),
		"string":  " 5 ",
		"float":   float64(6),
		"floatsz": "7.0",
	}
	for name, in := range ok {
		if _, err := CoerceInt(in); err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}

	bad := []any{nil, math.NaN(), 2.5, "abc", []byte("1.5"), struct{}{}}
	for _, in := range bad {
		if _, err := CoerceInt(in); !errors.Is(err, ErrNotInteger) {
			t.Fatalf("CoerceInt(%#v): expected ErrNotInteger, got %v", in, err)
		}
	}
}

func TestPrefixTableLongestPrefixWins(t *testing.T) {
	table := NewPrefixTable(map[string]string{
		"05":  "SHORT",
		"051": "LONG",
		"":    "IGNORED",
	})
	if table.Len() != 2 {
		t.Fatalf("expected 2 usable prefixes, got %d", table.Len())
	}

	if got := table.Resolve("0512"); got == nil || *got != "LONG" {
		t.Fatalf("expected LONG, got %v", got)
	}
	if got := table.Resolve("0599"); got == nil || *got != "SHORT" {
		t.Fatalf("expected SHORT, got %v", got)
	}
	if got := table.Resolve("99"); got != nil {
		t.Fatalf("expected no match, got %q", *got)
	}
	if got := table.Resolve(""); got != nil {
		t.Fatalf("expected nil for empty serial, got %q", *got)
	}
}

func TestTransformRowEnrichesRecord(t *testing.T) {
	tr := New(NewPrefixTable(DefaultPartIDByPrefix), PolicySkip)
	now := time.Date(2024, 3, 2, 8, 0, 1, 500, time.UTC)

	result, err := tr.Transform([]domain.SourceRecord{validRow(42)}, actor, now)
	if err != nil {
		t.Fatalf("transform returned error: %v", err)
	}
	if len(result.Records) != 1 || len(result.Skipped) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	rec := result.Records[0]
	if rec.ID != strings.ToUpper(rec.ID) {
		t.Fatalf("expected uppercase id, got %s", rec.ID)
	}
	if _, err := uuid.Parse(rec.ID); err != nil {
		t.Fatalf("record id is not a uuid: %v", err)
	}
	if !rec.IsActive || rec.CreatedBy != actor || rec.ModifiedBy != actor || rec.OwnerID != actor {
		t.Fatalf("audit fields not populated: %+v", rec)
	}
	wantStamp := time.Date(2024, 3, 2, 8, 0, 1, 0, time.UTC)
	if !rec.CreatedOn.Equal(wantStamp) || rec.CreatedOn != rec.ModifiedOn {
		t.Fatalf("unexpected audit timestamps: created=%v modified=%v", rec.CreatedOn, rec.ModifiedOn)
	}
	if rec.Tusn != "TU-1" || rec.SerialNumber != "0512345" {
		t.Fatalf("strings not trimmed: %q %q", rec.Tusn, rec.SerialNumber)
	}
	if rec.TamperLogID != 42 || rec.TamperType != 2 {
		t.Fatalf("unexpected ids: %+v", rec)
	}
	if rec.DisconnectTime == nil || !rec.DisconnectTime.Equal(time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)) {
		t.Fatalf("unexpected disconnect time: %v", rec.DisconnectTime)
	}
	if rec.ReconnectTime != nil {
		t.Fatalf("expected zero date to be nil, got %v", rec.ReconnectTime)
	}
	if rec.PartID == nil || *rec.PartID != DefaultPartIDByPrefix["05"] {
		t.Fatalf("unexpected part id: %v", rec.PartID)
	}
}

func TestTransformGeneratesUniqueIDs(t *testing.T) {
	tr := New(NewPrefixTable(nil), PolicySkip)
	rows := []domain.SourceRecord{validRow(1), validRow(2), validRow(3)}

	result, err := tr.Transform(rows, actor, time.Now())
	if err != nil {
		t.Fatalf("transform returned error: %v", err)
	}
	seen := map[string]bool{}
	for _, rec := range result.Records {
		if seen[rec.ID] {
			t.Fatalf("duplicate record id %s", rec.ID)
		}
		seen[rec.ID] = true
		if rec.PartID != nil {
			t.Fatalf("expected no part id with empty table, got %q", *rec.PartID)
		}
	}
}

func TestTransformSkipsMalformedRow(t *testing.T) {
	tr := New(NewPrefixTable(DefaultPartIDByPrefix), PolicySkip)

	bad := validRow(2)
	bad.TamperType = "not-a-number"
	rows := []domain.SourceRecord{validRow(1), bad, validRow(3)}

	result, err := tr.Transform(rows, actor, time.Now())
	if err != nil {
		t.Fatalf("skip policy must not return an error: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}
	if result.Records[0].TamperLogID != 1 || result.Records[1].TamperLogID != 3 {
		t.Fatalf("output order not preserved: %d, %d", result.Records[0].TamperLogID, result.Records[1].TamperLogID)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].TamperLogID != 2 || result.Skipped[0].Field != "tamper_type" {
		t.Fatalf("unexpected skipped rows: %+v", result.Skipped)
	}
}

func TestTransformFailPolicyAborts(t *testing.T) {
	tr := New(NewPrefixTable(nil), PolicyFail)

	bad := validRow(7)
	bad.DisconnectTime = "31/31/2024"

	_, err := tr.Transform([]domain.SourceRecord{validRow(6), bad}, actor, time.Now())
	var rowErr *domain.RowTransformError
	if !errors.As(err, &rowErr) {
		t.Fatalf("expected RowTransformError, got %v", err)
	}
	if rowErr.TamperLogID != 7 || rowErr.Field != "disconnect_time" {
		t.Fatalf("unexpected row error: %+v", rowErr)
	}
}

func TestTransformEmptyInput(t *testing.T) {
	tr := New(NewPrefixTable(nil), "")
	if tr.Policy() != PolicySkip {
		t.Fatalf("expected default skip policy, got %s", tr.Policy())
	}
	result, err := tr.Transform(nil, actor, time.Now())
	if err != nil || len(result.Records) != 0 {
		t.Fatalf("expected empty result, got %+v, %v", result, err)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(" FAIL "); err != nil || p != PolicyFail {
		t.Fatalf("expected fail policy, got %q, %v", p, err)
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
