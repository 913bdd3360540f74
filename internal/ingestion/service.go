package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/tamperlog/internal/domain"
	"github.com/rpattn/tamperlog/internal/metrics"
	"github.com/rpattn/tamperlog/internal/repository"
	"github.com/rpattn/tamperlog/internal/transform"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBatchSize is used when Options.BatchSize is not positive.
const DefaultBatchSize = 10000

// Options configures a Service.
type Options struct {
	BatchSize int
	// Actor is written to created_by, modified_by and owner_id.
	Actor string
}

// Service copies new tamper log rows from the source into the target.
type Service struct {
	source      repository.SourceRepository
	target      repository.TargetRepository
	transformer *transform.Transformer
	opts        Options
	logger      *zap.Logger
	metrics     *metrics.Metrics

	now      func() time.Time
	newRunID func() string
}

// NewService creates a new ETL service. logger and m may be nil.
func NewService(
	source repository.SourceRepository,
	target repository.TargetRepository,
	transformer *transform.Transformer,
	opts Options,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:      source,
		target:      target,
		transformer: transformer,
		opts:        opts,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
		newRunID:    func() string { return uuid.NewString() },
	}
}

// RunCycle drains the source above the target watermark one page at a time.
// Each page is committed before the next is fetched, so on failure the
// returned *domain.CycleError carries the progress already made.
func (s *Service) RunCycle(ctx context.Context) (domain.RunSummary, error) {
	started := s.now()
	summary := domain.RunSummary{RunID: s.newRunID(), StartedAt: started}

	log := s.logger.With(zap.String("run_id", summary.RunID))
	mainLog := log.Named("main-etl")
	fetchLog := log.Named("fetch")
	transformLog := log.Named("transform")
	insertLog := log.Named("insert")

	fail := func(err error) (domain.RunSummary, error) {
		summary.Duration = s.now().Sub(started)
		s.metrics.ObserveCycle(err, summary.Duration)
		return summary, &domain.CycleError{RunID: summary.RunID, Summary: summary, Err: err}
	}

	watermark, err := s.target.MaxTamperLogID(ctx)
	if err != nil {
		mainLog.Error("failed to load last tamper_log_id", zap.Error(err))
		return fail(err)
	}
	summary.StartWatermark = watermark
	summary.EndWatermark = watermark
	s.metrics.SetWatermark(watermark)

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		page, err := s.source.FetchPage(ctx, watermark, s.opts.BatchSize)
		if err != nil {
			fetchLog.Error("failed to fetch tamper logs",
				zap.Int64("after_id", watermark),
				zap.Int("limit", s.opts.BatchSize),
				zap.Error(err),
			)
			return fail(err)
		}
		if len(page.Records) == 0 {
			break
		}
		summary.RowsFetched += int64(len(page.Records))

		pageMax := page.MaxID()
		if pageMax <= watermark {
			err := fmt.Errorf("source returned tamper_log_id %d at or below watermark %d", pageMax, watermark)
			fetchLog.Error("failed to fetch tamper logs", zap.Error(err))
			return fail(&domain.StoreError{Store: domain.StoreSource, Op: "fetch_page", Err: err})
		}

		// Audit stamps are the UTC wall clock with the zone dropped.
		result, err := s.transformer.Transform(page.Records, s.opts.Actor, s.now().UTC())
		if err != nil {
			transformLog.Error("tamper batch transform aborted",
				zap.Int("row_count", len(page.Records)),
				zap.Error(err),
			)
			return fail(err)
		}
		for _, rowErr := range result.Skipped {
			transformLog.Warn("tamper row transform failed",
				zap.Int64("tamper_log_id", rowErr.TamperLogID),
				zap.String("field", rowErr.Field),
				zap.Error(rowErr.Err),
			)
		}
		summary.RowsSkipped += int64(len(result.Skipped))

		inserted, err := s.target.InsertBatch(ctx, result.Records)
		if err != nil {
			insertLog.Error("tamper log insert failed",
				zap.Int("row_count", len(result.Records)),
				zap.Int64("first_tamper_log_id", page.Records[0].ID),
				zap.Int64("last_tamper_log_id", pageMax),
				zap.Error(err),
			)
			return fail(&domain.LoadError{
				Rows:    len(result.Records),
				FirstID: page.Records[0].ID,
				LastID:  pageMax,
				Err:     err,
			})
		}

		summary.Batches++
		summary.RowsInserted += inserted
		watermark = pageMax
		summary.EndWatermark = watermark
		s.metrics.ObserveBatch(len(page.Records), int(inserted), len(result.Skipped), watermark)

		insertLog.Debug("tamper log batch committed",
			zap.Int("batch", summary.Batches),
			zap.Int64("rows_inserted", inserted),
			zap.Int64("last_tamper_log_id", watermark),
		)

		if page.Exhausted {
			break
		}
	}

	summary.Duration = s.now().Sub(started)
	s.metrics.ObserveCycle(nil, summary.Duration)

	mainLog.Info("tamper-log etl finished",
		zap.Int("batches", summary.Batches),
		zap.Int64("rows_fetched", summary.RowsFetched),
		zap.Int64("rows_inserted", summary.RowsInserted),
		zap.Int64("rows_skipped", summary.RowsSkipped),
		zap.Int64("start_watermark", summary.StartWatermark),
		zap.Int64("final_last_tamper_log_id", summary.EndWatermark),
		zap.Int64("duration_ms", summary.Duration.Milliseconds()),
	)
	return summary, nil
}
