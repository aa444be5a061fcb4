package dmarc

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrDuplicateReport is returned by the persistence layer when a report with
// the same file hash or logical identity has already been committed. The
// importer treats it as a duplicate skip, not a failure.
var ErrDuplicateReport = errors.New("report already exists")

// Report is the canonical form of one ingested aggregate report. The parser
// fills in everything except ID and FileHash; those get attached at
// persistence time. Parsing is permissive about missing metadata fields,
// ValidateMetadata enforces them before a report may be persisted.
type Report struct {
	ID           int64
	OrgName      string    `validate:"required"`
	Email        string    `validate:"required"`
	ReportID     string    `validate:"required"`
	BeginDate    time.Time `validate:"required"`
	EndDate      time.Time `validate:"required,gtfield=BeginDate"`
	PolicyDomain string
	PolicyP      string
	PolicyPct    int `validate:"gte=0,lte=100"`
	RawData      string
	FileHash     string
	Records      []Record
}

// Record is one source ip row of a report. Its lifetime is bound to the
// owning report, DmarcReportID is assigned when the report is persisted.
type Record struct {
	ID            int64
	DmarcReportID int64
	SourceIP      string
	Count         int
	Disposition   string
	DkimAligned   bool
	DkimResult    string
	SpfAligned    bool
	SpfResult     string
}

// Statistics are the read only aggregate counts over all persisted reports.
type Statistics struct {
	TotalReports     int64
	TotalRecords     int64
	TotalEmails      int64
	AuthSuccessCount int64
	AuthFailureCount int64
	PolicyBreakdown  map[string]int64
}

var validate = validator.New()

// ValidateMetadata checks the identity fields the parser tolerates being
// empty: org name, email and report id must be present and the reporting
// period must be a valid range.
func (r *Report) ValidateMetadata() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid report metadata: %w", err)
	}
	return nil
}

// Authenticated reports whether at least one mechanism aligned.
func (rec *Record) Authenticated() bool {
	return rec.DkimAligned || rec.SpfAligned
}

// AuthSuccessRate returns the percentage of records with at least one
// aligned mechanism. Reports without records yield 0.
func (r *Report) AuthSuccessRate() float64 {
	if len(r.Records) == 0 {
		return 0
	}
	passed := 0
	for i := range r.Records {
		if r.Records[i].Authenticated() {
			passed++
		}
	}
	return float64(passed) / float64(len(r.Records)) * 100
}
