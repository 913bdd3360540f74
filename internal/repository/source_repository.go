package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/tamperlog/internal/domain"
)

type sourceRepository struct {
	db             *sql.DB
	table          string
	acquireTimeout time.Duration
}

// NewSourceRepository wires a repository backed by a MySQL database/sql pool.
// table may be schema qualified ("en_tms.szaf_dismounting_log").
func NewSourceRepository(db *sql.DB, table string, acquireTimeout time.Duration) SourceRepository {
	return &sourceRepository{db: db, table: quoteMySQLIdentifier(table), acquireTimeout: acquireTimeout}
}

func (r *sourceRepository) FetchPage(ctx context.Context, afterID int64, limit int) (domain.Page, error) {
	if r.db == nil {
		return domain.Page{}, r.storeErr("fetch_page", fmt.Errorf("source repository not initialized"))
	}
	if limit <= 0 {
		return domain.Page{Exhausted: true}, nil
	}

	conn, err := r.conn(ctx)
	if err != nil {
		return domain.Page{}, r.storeErr("acquire", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(
		ctx,
		`SELECT id, tusn, sn, type, dis_time, ok_time
		 FROM `+r.table+`
		 WHERE id > ?
		 ORDER BY id
		 LIMIT ?`,
		afterID,
		limit,
	)
	if err != nil {
		return domain.Page{}, r.storeErr("fetch_page", err)
	}
	defer rows.Close()

	records := make([]domain.SourceRecord, 0, limit)
	for rows.Next() {
		var rec domain.SourceRecord
		if scanErr := rows.Scan(
			&rec.ID,
			&rec.Tusn,
			&rec.SerialNumber,
			&rec.TamperType,
			&rec.DisconnectTime,
			&rec.ReconnectTime,
		); scanErr != nil {
			return domain.Page{}, r.storeErr("scan", scanErr)
		}
		records = append(records, rec)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return domain.Page{}, r.storeErr("iterate", rowsErr)
	}

	return domain.Page{Records: records, Exhausted: len(records) < limit}, nil
}

func (r *sourceRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return r.storeErr("ping", fmt.Errorf("source repository not initialized"))
	}
	if err := r.db.PingContext(ctx); err != nil {
		return r.storeErr("ping", err)
	}
	return nil
}

// conn waits at most acquireTimeout for a pooled connection.
func (r *sourceRepository) conn(ctx context.Context) (*sql.Conn, error) {
	if r.acquireTimeout <= 0 {
		return r.db.Conn(ctx)
	}
	acquireCtx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()
	return r.db.Conn(acquireCtx)
}

func (r *sourceRepository) storeErr(op string, err error) error {
	return &domain.StoreError{Store: domain.StoreSource, Op: op, Err: err}
}

// quoteMySQLIdentifier backtick-quotes each dot separated part.
func quoteMySQLIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		part = strings.Trim(strings.TrimSpace(part), "`")
		parts[i] = "`" + strings.ReplaceAll(part, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}
