package repository

import (
	"context"
	"testing"

	"github.com/rpattn/tamperlog/internal/domain"
)

func TestQuoteMySQLIdentifier(t *testing.T) {
	cases := map[string]string{
		"en_tms.szaf_dismounting_log": "`en_tms`.`szaf_dismounting_log`",
		"logs":                        "`logs`",
		" `a` . b ":                   "`a`.`b`",
		"we`ird":                      "`we``ird`",
	}
	for in, want := range cases {
		if got := quoteMySQLIdentifier(in); got != want {
			t.Fatalf("quoteMySQLIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUninitializedSourceReturnsStoreErrors(t *testing.T) {
	ctx := context.Background()

	source := NewSourceRepository(nil, "t", 0)
	if _, err := source.FetchPage(ctx, 0, 10); !domain.IsStoreError(err, domain.StoreSource) {
		t.Fatalf("expected source store error, got %v", err)
	}
	if err := source.Ping(ctx); !domain.IsStoreError(err, domain.StoreSource) {
		t.Fatalf("expected source store error from ping, got %v", err)
	}
}
