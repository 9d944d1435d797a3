package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paperlens/exam-insight-api/internal/models"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
	"github.com/paperlens/exam-insight-api/pkg/export"
	"github.com/paperlens/exam-insight-api/pkg/jobs"
	"github.com/paperlens/exam-insight-api/pkg/storage"
)

type exportJobRepo interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateStatus(ctx context.Context, id string, status models.ExportJobStatus, filePath, errorMessage string) error
	ListByExam(ctx context.Context, examID string) ([]models.ExportJob, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type reportRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix  string
	ResultTTL  time.Duration
	Workers    int
	MaxRetries int
}

// ExportRequest asks for one student's score report.
type ExportRequest struct {
	ExamID      string              `json:"exam_id" validate:"required"`
	StudentID   string              `json:"student_id" validate:"required"`
	Format      models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
	RequestedBy string              `json:"-"`
}

// ExportDownload carries the signed link for a completed job.
type ExportDownload struct {
	JobID     string    `json:"job_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders score reports asynchronously. Requests enqueue a
// job; workers build the dataset from the analytics layer, render it and
// store the artifact. Downloads go through HMAC-signed tokens so the files
// themselves never need public paths.
type ExportService struct {
	repo      exportJobRepo
	analytics *AnalyticsService
	storage   fileStorage
	csv       reportRenderer
	pdf       reportRenderer
	signer    *storage.SignedURLSigner
	queue     *jobs.Queue
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService with its worker queue. Call
// Start before accepting requests and Stop on shutdown.
func NewExportService(repo exportJobRepo, analytics *AnalyticsService, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf reportRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	s := &ExportService{
		repo:      repo,
		analytics: analytics,
		storage:   store,
		csv:       csv,
		pdf:       pdf,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
	}
	s.queue = jobs.NewQueue("score-exports", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request persists a queued job and hands it to the workers.
func (s *ExportService) Request(ctx context.Context, req ExportRequest) (*models.ExportJob, error) {
	if req.ExamID == "" || req.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exam and student required")
	}
	if req.Format != models.ExportCSV && req.Format != models.ExportPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", req.Format))
	}
	job := &models.ExportJob{
		ExamID:      req.ExamID,
		StudentID:   req.StudentID,
		Format:      req.Format,
		Status:      models.ExportJobQueued,
		RequestedBy: req.RequestedBy,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "score_report"}); err != nil {
		if uerr := s.repo.UpdateStatus(ctx, job.ID, models.ExportJobFailed, "", err.Error()); uerr != nil {
			s.logger.Warn("failed to mark unenqueued job", zap.String("job_id", job.ID), zap.Error(uerr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return job, nil
}

// Status returns one job.
func (s *ExportService) Status(ctx context.Context, jobID string) (*models.ExportJob, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return job, nil
}

// ListByExam returns an exam's export jobs.
func (s *ExportService) ListByExam(ctx context.Context, examID string) ([]models.ExportJob, error) {
	list, err := s.repo.ListByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	return list, nil
}

// DownloadLink issues a signed URL for a completed job.
func (s *ExportService) DownloadLink(ctx context.Context, jobID string) (*ExportDownload, error) {
	job, err := s.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.ExportJobCompleted || job.FilePath == "" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "export not completed")
	}
	token, expiresAt, err := s.signer.Generate(job.ID, job.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportDownload{
		JobID:     job.ID,
		URL:       fmt.Sprintf("%s/exports/download/%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// Open validates a download token and returns the stored file.
func (s *ExportService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	return s.storage.Open(relPath)
}

// Cleanup removes artifacts older than ttl (the configured ResultTTL when
// ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) process(ctx context.Context, queued jobs.Job) error {
	job, err := s.repo.FindByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", queued.ID, err)
	}
	if err := s.repo.UpdateStatus(ctx, job.ID, models.ExportJobRunning, "", ""); err != nil {
		return fmt.Errorf("mark export job running: %w", err)
	}

	payload, err := s.render(ctx, job)
	if err != nil {
		if uerr := s.repo.UpdateStatus(ctx, job.ID, models.ExportJobFailed, "", err.Error()); uerr != nil {
			s.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(uerr))
		}
		return err
	}

	filename := fmt.Sprintf("score_report_%s_%s_%s.%s",
		sanitizeFilename(job.ExamID), sanitizeFilename(job.StudentID),
		time.Now().UTC().Format("20060102_150405"), job.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		if uerr := s.repo.UpdateStatus(ctx, job.ID, models.ExportJobFailed, "", err.Error()); uerr != nil {
			s.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(uerr))
		}
		return fmt.Errorf("store export artifact: %w", err)
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, models.ExportJobCompleted, relPath, ""); err != nil {
		return fmt.Errorf("mark export job completed: %w", err)
	}
	s.logger.Info("export completed", zap.String("job_id", job.ID), zap.String("file", relPath))
	return nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) ([]byte, error) {
	dataset, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}
	switch job.Format {
	case models.ExportCSV:
		return s.csv.Render(dataset)
	case models.ExportPDF:
		return s.pdf.Render(dataset)
	default:
		return nil, fmt.Errorf("unsupported format %s", job.Format)
	}
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, error) {
	summary, _, err := s.analytics.Scores(ctx, job.ExamID, job.StudentID)
	if err != nil {
		return export.Dataset{}, err
	}
	position, _, err := s.analytics.Position(ctx, job.ExamID, job.StudentID, models.GroupByGrade, "")
	if err != nil {
		return export.Dataset{}, err
	}

	comparisons := make(map[string]models.SubjectComparison, len(position.SubjectComparison))
	for _, row := range position.SubjectComparison {
		comparisons[row.SubjectID] = row
	}

	columns := []string{"Subject", "Score", "Full Score", "Rank", "Cohort Avg", "Cohort Max", "Diff"}
	rows := make([]map[string]string, 0, len(summary.SubjectScores))
	for _, subject := range summary.SubjectScores {
		row := map[string]string{
			"Subject":    subject.SubjectName,
			"Score":      fmt.Sprintf("%.2f", subject.Score),
			"Full Score": fmt.Sprintf("%.2f", subject.FullScore),
		}
		if comparison, ok := comparisons[subject.SubjectID]; ok {
			row["Rank"] = fmt.Sprintf("%d", comparison.Rank)
			row["Cohort Avg"] = fmt.Sprintf("%.2f", comparison.Average)
			row["Cohort Max"] = fmt.Sprintf("%.2f", comparison.Max)
			row["Diff"] = fmt.Sprintf("%+.2f", comparison.Diff)
		}
		rows = append(rows, row)
	}

	return export.Dataset{
		Title:   fmt.Sprintf("Score Report %s", job.ExamID),
		Columns: columns,
		Rows:    rows,
		Summary: map[string]string{
			"Subject": "TOTAL",
			"Score":   fmt.Sprintf("%.2f", summary.TotalScore),
			"Rank":    fmt.Sprintf("%d of %d", position.TotalRank, position.CohortSize),
			"Diff":    fmt.Sprintf("win rate %.1f%%", position.TotalWinRate),
		},
	}, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
