package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all repository instances
type Repositories struct {
	Investigations *InvestigationRepository
	Records        *RecordRepository
	Reports        *ReportRepository
}

// NewRepositories creates all repository instances from a database pool
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Investigations: NewInvestigationRepository(pool),
		Records:        NewRecordRepository(pool),
		Reports:        NewReportRepository(pool),
	}
}
