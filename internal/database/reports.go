package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/firefart/dmarcimport/internal/dmarc"
)

// ReportsRepository persists and queries reports and their records.
type ReportsRepository struct {
	db *sql.DB
}

func NewReportsRepository(db *sql.DB) *ReportsRepository {
	return &ReportsRepository{db: db}
}

const reportColumns = `id, org_name, email, report_id, begin_date, end_date,
	policy_domain, policy_p, policy_pct, file_hash`

func scanReport(row *sql.Row) (*dmarc.Report, error) {
	var r dmarc.Report
	err := row.Scan(&r.ID, &r.OrgName, &r.Email, &r.ReportID, &r.BeginDate,
		&r.EndDate, &r.PolicyDomain, &r.PolicyP, &r.PolicyPct, &r.FileHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("could not scan report: %w", err)
	}
	return &r, nil
}

// FindReportByHash returns the report ingested from byte identical content,
// or nil if none exists.
func (r *ReportsRepository) FindReportByHash(ctx context.Context, fileHash string) (*dmarc.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM dmarc_reports WHERE file_hash = $1`
	return scanReport(r.db.QueryRowContext(ctx, query, fileHash))
}

// FindReportByIdentity returns the report matching the logical identity
// tuple, or nil if none exists.
func (r *ReportsRepository) FindReportByIdentity(ctx context.Context, reportID, orgName string, begin, end time.Time) (*dmarc.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM dmarc_reports
		WHERE report_id = $1 AND org_name = $2 AND begin_date = $3 AND end_date = $4`
	return scanReport(r.db.QueryRowContext(ctx, query, reportID, orgName, begin, end))
}

// SaveReport inserts the report and all of its records in one transaction.
// Either everything becomes visible or nothing does. A unique constraint
// violation is reported as dmarc.ErrDuplicateReport so callers can treat a
// lost duplicate-check race as a skip.
func (r *ReportsRepository) SaveReport(ctx context.Context, report *dmarc.Report) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint: errcheck

	insertReport := `
		INSERT INTO dmarc_reports (org_name, email, report_id, begin_date, end_date,
			policy_domain, policy_p, policy_pct, raw_data, file_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err = tx.QueryRowContext(ctx, insertReport,
		report.OrgName, report.Email, report.ReportID, report.BeginDate, report.EndDate,
		report.PolicyDomain, report.PolicyP, report.PolicyPct, report.RawData, report.FileHash,
	).Scan(&report.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("could not insert report: %w", dmarc.ErrDuplicateReport)
		}
		return fmt.Errorf("could not insert report: %w", err)
	}

	insertRecord := `
		INSERT INTO dmarc_records (dmarc_report_id, source_ip, count, disposition,
			dkim_aligned, dkim_result, spf_aligned, spf_result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	for i := range report.Records {
		record := &report.Records[i]
		record.DmarcReportID = report.ID
		err = tx.QueryRowContext(ctx, insertRecord,
			record.DmarcReportID, record.SourceIP, record.Count, record.Disposition,
			record.DkimAligned, record.DkimResult, record.SpfAligned, record.SpfResult,
		).Scan(&record.ID)
		if err != nil {
			return fmt.Errorf("could not insert record for %s: %w", record.SourceIP, err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("could not commit report: %w", dmarc.ErrDuplicateReport)
		}
		return fmt.Errorf("could not commit report: %w", err)
	}
	return nil
}

// ImportStatistics aggregates the persisted reports and records. Pure read,
// safe to run concurrently with an import.
func (r *ReportsRepository) ImportStatistics(ctx context.Context) (*dmarc.Statistics, error) {
	stats := &dmarc.Statistics{
		PolicyBreakdown: make(map[string]int64),
	}

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dmarc_reports`).Scan(&stats.TotalReports)
	if err != nil {
		return nil, fmt.Errorf("could not count reports: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(count), 0) FROM dmarc_records`,
	).Scan(&stats.TotalRecords, &stats.TotalEmails)
	if err != nil {
		return nil, fmt.Errorf("could not count records: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(count), 0) FROM dmarc_records WHERE dkim_aligned OR spf_aligned`,
	).Scan(&stats.AuthSuccessCount)
	if err != nil {
		return nil, fmt.Errorf("could not sum aligned records: %w", err)
	}
	stats.AuthFailureCount = stats.TotalEmails - stats.AuthSuccessCount

	rows, err := r.db.QueryContext(ctx,
		`SELECT policy_p, COUNT(*) FROM dmarc_reports GROUP BY policy_p`,
	)
	if err != nil {
		return nil, fmt.Errorf("could not query policy breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var policy string
		var count int64
		if err := rows.Scan(&policy, &count); err != nil {
			return nil, fmt.Errorf("could not scan policy breakdown: %w", err)
		}
		stats.PolicyBreakdown[policy] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read policy breakdown: %w", err)
	}

	return stats, nil
}
