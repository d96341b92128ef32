package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
	"github.com/aryan0dhankhar/insightdash/internal/ingest"
	"github.com/aryan0dhankhar/insightdash/internal/observability/metrics"
	"github.com/aryan0dhankhar/insightdash/internal/schema"
	"github.com/aryan0dhankhar/insightdash/internal/security/audit"
)

type ingestJob struct {
	userID     int64
	sourceID   int64
	sourceType string
	path       string
}

// IngestService stores uploaded spreadsheets and parses them in the background.
// A data source is created in processing and later moves to ready or error.
type IngestService struct {
	sources domain.DataSourceRepository
	dir     string
	workers int
	jobs    chan ingestJob
	audit   *audit.Logger
	logger  *slog.Logger
	wg      sync.WaitGroup
	// done is called after each job, for tests
	done func(sourceID int64)
}

func NewIngestService(sources domain.DataSourceRepository, dir string, workers int, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	return &IngestService{
		sources: sources,
		dir:     dir,
		workers: workers,
		jobs:    make(chan ingestJob, 64),
		audit:   audit.NewLogger(logger),
		logger:  logger.With(slog.String("component", "ingest")),
		done:    func(int64) {},
	}
}

// Start launches the worker pool; workers exit when ctx is cancelled.
// Data sources left in processing by an earlier run are queued again.
func (s *IngestService) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}
	pending, err := s.sources.ListByStatus(ctx, domain.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to load pending uploads: %w", err)
	}

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.run(ctx, i)
	}
	s.logger.Info("ingest workers started",
		slog.Int("workers", s.workers),
		slog.String("dir", s.dir),
		slog.Int("pending", len(pending)),
	)

	if len(pending) > 0 {
		s.wg.Add(1)
		go s.requeue(ctx, pending)
	}
	return nil
}

func (s *IngestService) requeue(ctx context.Context, pending []*domain.DataSource) {
	defer s.wg.Done()
	for _, source := range pending {
		if source.FilePath == nil {
			s.fail(context.WithoutCancel(ctx), source, errors.New("upload was interrupted before it was stored"))
			continue
		}
		job := ingestJob{userID: source.UserID, sourceID: source.ID, sourceType: source.Type, path: *source.FilePath}
		select {
		case s.jobs <- job:
		case <-ctx.Done():
			return
		}
	}
}

// fail settles a data source that can no longer be parsed
func (s *IngestService) fail(ctx context.Context, source *domain.DataSource, cause error) {
	source.Status = domain.StatusError
	source.Schema = errorSchema(cause)
	if err := s.sources.Update(ctx, source); err != nil {
		s.logger.Error("failed to mark data source as failed",
			slog.Int64("data_source_id", source.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Wait blocks until every worker has exited
func (s *IngestService) Wait() {
	s.wg.Wait()
}

func (s *IngestService) run(ctx context.Context, worker int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("ingest worker stopped", slog.Int("worker", worker))
			return
		case job := <-s.jobs:
			s.process(context.WithoutCancel(ctx), job)
		}
	}
}

// Upload stores the file and registers a data source for the caller.
// name defaults to the file name without its extension.
func (s *IngestService) Upload(ctx context.Context, name, fileName string, r io.Reader) (*domain.DataSource, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	fileName = filepath.Base(fileName)
	sourceType, ok := ingest.TypeFor(fileName)
	if !ok {
		metrics.ObserveValidationFailure(domain.DataSourceEntity.Name())
		return nil, &schema.ValidationError{
			Entity: domain.DataSourceEntity.Name(),
			Fields: []schema.FieldError{{Field: "fileName", Reason: schema.ReasonConstraint, Message: "must be a .csv, .xlsx, .json or .parquet file"}},
		}
	}
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}

	path := filepath.Join(s.dir, uuid.NewString()+strings.ToLower(filepath.Ext(fileName)))
	if err := writeFile(path, r); err != nil {
		s.logger.Error("failed to store upload", slog.String("error", err.Error()))
		return nil, err
	}

	source := &domain.DataSource{
		Name:     name,
		Type:     sourceType,
		FileName: &fileName,
		FilePath: &path,
		Status:   domain.StatusProcessing,
	}
	// parquet files are kept as metadata only
	if sourceType == domain.SourceParquet {
		source.Status = domain.StatusReady
	}
	source.AssignOwner(userID)

	err = s.sources.Create(ctx, source)
	s.audit.LogMutation(ctx, "upload", domain.DataSourceEntity.Table(), source.ID, err)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	if source.Status == domain.StatusProcessing {
		job := ingestJob{userID: userID, sourceID: source.ID, sourceType: sourceType, path: path}
		select {
		case s.jobs <- job:
		case <-ctx.Done():
			s.fail(context.WithoutCancel(ctx), source, errors.New("upload was cancelled before it was parsed"))
			os.Remove(path)
			return nil, ctx.Err()
		}
	}
	return source, nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write upload: %w", err)
	}
	return f.Close()
}

func (s *IngestService) process(ctx context.Context, job ingestJob) {
	defer s.done(job.sourceID)
	logger := s.logger.With(slog.Int64("data_source_id", job.sourceID))
	start := time.Now()

	res, parseErr := ingest.ParseFile(job.sourceType, job.path)

	source, err := s.sources.Get(ctx, job.userID, job.sourceID)
	if err != nil {
		logger.Error("failed to load data source", slog.String("error", err.Error()))
		return
	}
	if source.Status != domain.StatusProcessing {
		logger.Info("data source already settled, dropping ingest result", slog.String("status", source.Status))
		return
	}

	result := "success"
	if parseErr != nil {
		result = "error"
		logger.Warn("ingest failed", slog.String("error", parseErr.Error()))
		source.Status = domain.StatusError
		source.Schema = errorSchema(parseErr)
	} else {
		columns, err := json.Marshal(res.Columns)
		if err != nil {
			logger.Error("failed to encode schema", slog.String("error", err.Error()))
			return
		}
		source.Status = domain.StatusReady
		source.Schema = columns
		source.RowCount = res.RowCount
	}

	if err := s.sources.Update(ctx, source); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("failed to store ingest result", slog.String("error", err.Error()))
		}
		return
	}

	metrics.ObserveIngest(job.sourceType, result, time.Since(start))
	logger.Info("ingest finished",
		slog.String("status", source.Status),
		slog.Int64("rows", source.RowCount),
		slog.Duration("duration", time.Since(start)),
	)
}

func errorSchema(err error) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"error": err.Error()})
	return raw
}
