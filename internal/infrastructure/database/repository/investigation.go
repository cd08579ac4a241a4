package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"intelgraph-lab/internal/domain/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// InvestigationRepository handles investigation persistence
type InvestigationRepository struct {
	pool *pgxpool.Pool
}

// NewInvestigationRepository creates a new investigation repository
func NewInvestigationRepository(pool *pgxpool.Pool) *InvestigationRepository {
	return &InvestigationRepository{pool: pool}
}

// Create inserts a new investigation
func (r *InvestigationRepository) Create(ctx context.Context, inv *models.Investigation) (*models.Investigation, error) {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.Status == "" {
		inv.Status = models.InvestigationStatusOpen
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	query := `
		INSERT INTO investigations (
			id, name, description, targets, status, record_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		inv.ID, inv.Name, inv.Description, inv.Targets, inv.Status,
		inv.RecordCount, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create investigation: %w", err)
	}

	return inv, nil
}

// GetByID retrieves an investigation by ID
func (r *InvestigationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Investigation, error) {
	query := `
		SELECT id, name, description, targets, status, record_count,
			   last_report_id, created_at, updated_at
		FROM investigations
		WHERE id = $1`

	inv := &models.Investigation{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.Name, &inv.Description, &inv.Targets, &inv.Status,
		&inv.RecordCount, &inv.LastReportID, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get investigation: %w", err)
	}

	return inv, nil
}

// List retrieves investigations ordered by most recently updated
func (r *InvestigationRepository) List(ctx context.Context, status models.InvestigationStatus, limit, offset int) ([]*models.Investigation, int64, error) {
	countQuery := "SELECT COUNT(*) FROM investigations"
	listQuery := `
		SELECT id, name, description, targets, status, record_count,
			   last_report_id, created_at, updated_at
		FROM investigations`

	args := []any{}
	if status != "" {
		countQuery += " WHERE status = $1"
		listQuery += " WHERE status = $1"
		args = append(args, status)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count investigations: %w", err)
	}

	if limit <= 0 {
		limit = 100
	}
	listQuery += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list investigations: %w", err)
	}
	defer rows.Close()

	var investigations []*models.Investigation
	for rows.Next() {
		inv := &models.Investigation{}
		if err := rows.Scan(
			&inv.ID, &inv.Name, &inv.Description, &inv.Targets, &inv.Status,
			&inv.RecordCount, &inv.LastReportID, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan investigation: %w", err)
		}
		investigations = append(investigations, inv)
	}

	return investigations, total, nil
}

// UpdateStatus transitions an investigation's lifecycle status
func (r *InvestigationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.InvestigationStatus) error {
	query := `UPDATE investigations SET status = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update investigation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLastReport records the most recent report for an investigation
func (r *InvestigationRepository) SetLastReport(ctx context.Context, id, reportID uuid.UUID) error {
	query := `UPDATE investigations SET last_report_id = $2, updated_at = $3 WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, reportID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set last report: %w", err)
	}
	return nil
}

// IncrementRecordCount adjusts an investigation's record counter
func (r *InvestigationRepository) IncrementRecordCount(ctx context.Context, id uuid.UUID, delta int) error {
	query := `
		UPDATE investigations SET
			record_count = record_count + $2,
			updated_at = $3
		WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, delta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to increment record count: %w", err)
	}
	return nil
}

// Delete removes an investigation and cascades to its records and reports
func (r *InvestigationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM investigations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete investigation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
