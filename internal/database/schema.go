package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Reports are append only: there is no delete path once a report has been
// committed, the retention sweeper only ever removes source files.
//
// The two unique constraints implement the dedup keys: file_hash catches
// byte identical resubmissions, the identity tuple catches vendors resending
// the same report with cosmetic formatting differences. report_id alone is
// not unique, vendors only guarantee it per organization.
const schema = `
CREATE TABLE IF NOT EXISTS dmarc_reports (
	id            BIGSERIAL PRIMARY KEY,
	org_name      TEXT NOT NULL,
	email         TEXT NOT NULL,
	report_id     TEXT NOT NULL,
	begin_date    TIMESTAMPTZ NOT NULL,
	end_date      TIMESTAMPTZ NOT NULL,
	policy_domain TEXT NOT NULL,
	policy_p      TEXT NOT NULL,
	policy_pct    INTEGER NOT NULL,
	raw_data      TEXT NOT NULL,
	file_hash     TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT dmarc_reports_file_hash_key UNIQUE (file_hash),
	CONSTRAINT dmarc_reports_identity_key UNIQUE (report_id, org_name, begin_date, end_date)
);

CREATE INDEX IF NOT EXISTS dmarc_reports_date_range_idx ON dmarc_reports (begin_date, end_date);
CREATE INDEX IF NOT EXISTS dmarc_reports_org_name_idx ON dmarc_reports (org_name);
CREATE INDEX IF NOT EXISTS dmarc_reports_policy_domain_idx ON dmarc_reports (policy_domain);

CREATE TABLE IF NOT EXISTS dmarc_records (
	id              BIGSERIAL PRIMARY KEY,
	dmarc_report_id BIGINT NOT NULL REFERENCES dmarc_reports (id) ON DELETE CASCADE,
	source_ip       TEXT NOT NULL,
	count           INTEGER NOT NULL,
	disposition     TEXT NOT NULL,
	dkim_aligned    BOOLEAN NOT NULL,
	dkim_result     TEXT NOT NULL,
	spf_aligned     BOOLEAN NOT NULL,
	spf_result      TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS dmarc_records_source_ip_idx ON dmarc_records (source_ip);
CREATE INDEX IF NOT EXISTS dmarc_records_alignment_idx ON dmarc_records (dkim_aligned, spf_aligned);
CREATE INDEX IF NOT EXISTS dmarc_records_disposition_idx ON dmarc_records (disposition);
`

// Migrate applies the schema. All statements are idempotent so this runs on
// every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("could not apply schema: %w", err)
	}
	return nil
}
