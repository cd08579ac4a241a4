package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"intelgraph-lab/internal/domain/models"
)

// ReportRepository persists intelligence reports. The report body is stored
// as one jsonb document; pulling apart its entities and assessments into
// relational rows buys nothing since reports are immutable and always read
// whole.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a new report repository
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Save upserts a report. Re-analyzing an unchanged snapshot produces the same
// report ID, so the upsert keeps reruns idempotent at the storage layer too.
func (r *ReportRepository) Save(ctx context.Context, report *models.IntelligenceReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO reports (id, investigation_id, confidence_score, body, generated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			confidence_score = EXCLUDED.confidence_score,
			body = EXCLUDED.body,
			generated_at = EXCLUDED.generated_at`

	_, err = r.pool.Exec(ctx, query,
		report.ID, report.InvestigationID, report.ConfidenceScore, body, report.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetByID retrieves a report by ID
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.IntelligenceReport, error) {
	var body []byte
	err := r.pool.QueryRow(ctx, `SELECT body FROM reports WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	report := &models.IntelligenceReport{}
	if err := json.Unmarshal(body, report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return report, nil
}

// GetLatest retrieves the most recent report for an investigation
func (r *ReportRepository) GetLatest(ctx context.Context, investigationID uuid.UUID) (*models.IntelligenceReport, error) {
	var body []byte
	err := r.pool.QueryRow(ctx, `
		SELECT body FROM reports
		WHERE investigation_id = $1
		ORDER BY generated_at DESC
		LIMIT 1`, investigationID,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}

	report := &models.IntelligenceReport{}
	if err := json.Unmarshal(body, report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return report, nil
}

// ReportSummary is the listing projection of a stored report.
type ReportSummary struct {
	ID              uuid.UUID `json:"id"`
	InvestigationID uuid.UUID `json:"investigation_id"`
	ConfidenceScore float64   `json:"confidence_score"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// ListByInvestigation lists report summaries newest first
func (r *ReportRepository) ListByInvestigation(ctx context.Context, investigationID uuid.UUID, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, investigation_id, confidence_score, generated_at
		FROM reports
		WHERE investigation_id = $1
		ORDER BY generated_at DESC
		LIMIT $2`, investigationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var summaries []ReportSummary
	for rows.Next() {
		var s ReportSummary
		if err := rows.Scan(&s.ID, &s.InvestigationID, &s.ConfidenceScore, &s.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	return summaries, nil
}
