package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpattn/tamperlog/internal/db"
	"github.com/rpattn/tamperlog/internal/domain"

	"github.com/jackc/pgx/v5"
)

// insertChunkSize bounds the number of statements queued per pgx batch.
// Every chunk of one InsertBatch call shares the same transaction.
const insertChunkSize = 500

type targetRepository struct {
	conn  *db.Connection
	table string
}

// NewTargetRepository wires a repository backed by the target pool. table may
// be schema qualified ("mfu.device_tamper_log").
func NewTargetRepository(conn *db.Connection, table string) TargetRepository {
	return &targetRepository{
		conn:  conn,
		table: sanitizeTable(table),
	}
}

func (r *targetRepository) MaxTamperLogID(ctx context.Context) (int64, error) {
	if r.conn == nil || r.conn.Pool == nil {
		return 0, r.storeErr("max_tamper_log_id", fmt.Errorf("target repository not initialized"))
	}

	pooled, err := r.conn.Acquire(ctx)
	if err != nil {
		return 0, r.storeErr("acquire", err)
	}
	defer pooled.Release()

	var maxID int64
	if err := pooled.QueryRow(ctx, `SELECT COALESCE(MAX(tamper_log_id), 0) FROM `+r.table).Scan(&maxID); err != nil {
		return 0, r.storeErr("max_tamper_log_id", err)
	}
	return maxID, nil
}

func (r *targetRepository) InsertBatch(ctx context.Context, rows []domain.TargetRecord) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if r.conn == nil || r.conn.Pool == nil {
		return 0, r.storeErr("insert_batch", fmt.Errorf("target repository not initialized"))
	}

	query := insertStatement(r.table)
	var inserted int64
	err := r.conn.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		for start := 0; start < len(rows); start += insertChunkSize {
			end := min(start+insertChunkSize, len(rows))
			n, err := execBatch(ctx, tx, query, rows[start:end])
			if err != nil {
				return err
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, r.storeErr("insert_batch", err)
	}
	return inserted, nil
}

func (r *targetRepository) Ping(ctx context.Context) error {
	if r.conn == nil || r.conn.Pool == nil {
		return r.storeErr("ping", fmt.Errorf("target repository not initialized"))
	}
	if err := r.conn.Pool.Ping(ctx); err != nil {
		return r.storeErr("ping", err)
	}
	return nil
}

func (r *targetRepository) storeErr(op string, err error) error {
	return &domain.StoreError{Store: domain.StoreTarget, Op: op, Err: err}
}

func execBatch(ctx context.Context, tx pgx.Tx, query string, rows []domain.TargetRecord) (int64, error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query, insertArgs(row)...)
	}

	results := tx.SendBatch(ctx, batch)
	var affected int64
	for i := range rows {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return 0, fmt.Errorf("failed to insert tamper_log_id %d: %w", rows[i].TamperLogID, err)
		}
		affected += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("failed to close batch results: %w", err)
	}
	return affected, nil
}

func insertArgs(row domain.TargetRecord) []any {
	return []any{
		row.ID,
		row.IsActive,
		row.CreatedBy,
		row.CreatedOn,
		row.ModifiedBy,
		row.ModifiedOn,
		row.OwnerID,
		row.TamperLogID,
		row.Tusn,
		row.SerialNumber,
		row.TamperType,
		row.DisconnectTime,
		row.ReconnectTime,
		row.PartID,
	}
}

func insertStatement(table string) string {
	return `INSERT INTO ` + table + ` (
		id, is_active, created_by, created_on, modified_by, modified_on, owner_id,
		tamper_log_id, tusn, serial_number, tamper_type, disconnect_time, reconnect_time, part_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (tamper_log_id) DO NOTHING`
}

func sanitizeTable(table string) string {
	parts := strings.Split(table, ".")
	for i, part := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(part), `"`)
	}
	return pgx.Identifier(parts).Sanitize()
}
