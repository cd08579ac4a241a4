package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"intelgraph-lab/internal/domain/models"
)

// RecordRepository handles raw record persistence
type RecordRepository struct {
	pool *pgxpool.Pool
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

// CreateBatch inserts a batch of raw records in one transaction. Records are
// immutable once stored; re-inserting an existing ID is a no-op.
func (r *RecordRepository) CreateBatch(ctx context.Context, records []*models.RawRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO raw_records (
			id, investigation_id, source_platform, source_identifier,
			display_name, bio, email, location, verified, created_at,
			metrics, raw_payload, collected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	for _, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		batch.Queue(query,
			rec.ID, rec.InvestigationID, rec.SourcePlatform, rec.SourceIdentifier,
			rec.DisplayName, rec.Bio, rec.Email, rec.Location, rec.Verified,
			rec.CreatedAt, rec.Metrics, rec.RawPayload, rec.CollectedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range records {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("failed to insert record batch: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

// ListByInvestigation retrieves the full record snapshot for an investigation
func (r *RecordRepository) ListByInvestigation(ctx context.Context, investigationID uuid.UUID) ([]*models.RawRecord, error) {
	query := `
		SELECT id, investigation_id, source_platform, source_identifier,
			   display_name, bio, email, location, verified, created_at,
			   metrics, raw_payload, collected_at
		FROM raw_records
		WHERE investigation_id = $1
		ORDER BY collected_at, id`

	rows, err := r.pool.Query(ctx, query, investigationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*models.RawRecord
	for rows.Next() {
		rec := &models.RawRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.InvestigationID, &rec.SourcePlatform, &rec.SourceIdentifier,
			&rec.DisplayName, &rec.Bio, &rec.Email, &rec.Location, &rec.Verified,
			&rec.CreatedAt, &rec.Metrics, &rec.RawPayload, &rec.CollectedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// CountByInvestigation returns the number of stored records
func (r *RecordRepository) CountByInvestigation(ctx context.Context, investigationID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM raw_records WHERE investigation_id = $1`,
		investigationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// DeleteByInvestigation removes all records for an investigation
func (r *RecordRepository) DeleteByInvestigation(ctx context.Context, investigationID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM raw_records WHERE investigation_id = $1`, investigationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	return tag.RowsAffected(), nil
}
