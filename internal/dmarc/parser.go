package dmarc

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseErrorKind classifies why a report could not be normalized.
type ParseErrorKind int

const (
	// ParseErrorMalformed means the payload is not well formed XML (or a
	// broken archive).
	ParseErrorMalformed ParseErrorKind = iota
	// ParseErrorMissingMetadata means the report_metadata block is absent.
	ParseErrorMissingMetadata
	// ParseErrorMissingDateRange means the date_range block is absent.
	ParseErrorMissingDateRange
	// ParseErrorMissingPolicy means the policy_published block is absent.
	ParseErrorMissingPolicy
	// ParseErrorInternal wraps an unexpected error so parsing never leaks an
	// untyped failure.
	ParseErrorInternal
)

func (k ParseErrorKind) String() string {
	switch k {
	case ParseErrorMalformed:
		return "malformed xml"
	case ParseErrorMissingMetadata:
		return "missing report metadata"
	case ParseErrorMissingDateRange:
		return "missing date range"
	case ParseErrorMissingPolicy:
		return "missing policy published"
	case ParseErrorInternal:
		return "internal parse error"
	default:
		return "unknown parse error"
	}
}

// ParseError is the only error type Parse returns.
type ParseError struct {
	Kind ParseErrorKind
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse normalizes the raw bytes of one report file into a canonical Report.
// Missing org name, email or report id yield empty strings instead of an
// error, downstream validation decides whether that blocks persistence.
// Records without a row or policy_evaluated block are skipped, a report with
// zero records is valid.
func Parse(raw []byte) (report *Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = &ParseError{Kind: ParseErrorInternal, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	xmlContent, err := extractXML(raw)
	if err != nil {
		return nil, &ParseError{Kind: ParseErrorMalformed, Err: err}
	}

	var doc XMLReport
	if err := xml.Unmarshal(xmlContent, &doc); err != nil {
		return nil, &ParseError{Kind: ParseErrorMalformed, Err: err}
	}

	meta := doc.ReportMetadata
	if meta == nil {
		return nil, &ParseError{Kind: ParseErrorMissingMetadata}
	}
	if meta.DateRange == nil {
		return nil, &ParseError{Kind: ParseErrorMissingDateRange}
	}
	policy := doc.PolicyPublished
	if policy == nil {
		return nil, &ParseError{Kind: ParseErrorMissingPolicy}
	}

	report = &Report{
		OrgName:      strings.TrimSpace(meta.OrgName),
		Email:        strings.TrimSpace(meta.Email),
		ReportID:     strings.TrimSpace(meta.ReportID),
		BeginDate:    time.Unix(meta.DateRange.Begin, 0).UTC(),
		EndDate:      time.Unix(meta.DateRange.End, 0).UTC(),
		PolicyDomain: strings.TrimSpace(policy.Domain),
		PolicyP:      policyP(policy.P),
		PolicyPct:    policyPct(policy.Pct),
		RawData:      string(xmlContent),
	}

	for _, rec := range doc.Records {
		if rec.Row == nil || rec.Row.PolicyEvaluated == nil {
			// best effort, a broken record does not fail the report
			continue
		}
		evaluated := rec.Row.PolicyEvaluated

		var dkimEntries, spfEntries []AuthResult
		if rec.AuthResults != nil {
			dkimEntries = rec.AuthResults.Dkim
			spfEntries = rec.AuthResults.Spf
		}
		dkimAligned, dkimResult := resolveAlignment(evaluated.Dkim, dkimEntries)
		spfAligned, spfResult := resolveAlignment(evaluated.Spf, spfEntries)

		report.Records = append(report.Records, Record{
			SourceIP:    strings.TrimSpace(rec.Row.SourceIP),
			Count:       rec.Row.Count,
			Disposition: strings.TrimSpace(evaluated.Disposition),
			DkimAligned: dkimAligned,
			DkimResult:  dkimResult,
			SpfAligned:  spfAligned,
			SpfResult:   spfResult,
		})
	}

	return report, nil
}

func policyP(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "none"
	}
	return p
}

func policyPct(pct string) int {
	pct = strings.TrimSpace(pct)
	if pct == "" {
		return 100
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return 0
	}
	return n
}

// alignmentTier resolves alignment and result from one source. Tiers are
// evaluated in order and the first one that yields an answer wins.
type alignmentTier func() (aligned bool, result string, ok bool)

// resolveAlignment determines a mechanism's alignment and result string.
// The policy_evaluated outcome takes precedence because it reflects the
// receiver's applied alignment semantics, the auth_results entries are only
// a fallback for vendors that leave policy_evaluated empty.
func resolveAlignment(policyOutcome string, entries []AuthResult) (bool, string) {
	tiers := []alignmentTier{
		policyEvaluatedTier(policyOutcome),
		authResultsTier(entries),
	}
	for _, tier := range tiers {
		if aligned, result, ok := tier(); ok {
			return aligned, result
		}
	}
	return false, "fail"
}

// policyEvaluatedTier uses the explicit per mechanism outcome as both
// alignment and result.
func policyEvaluatedTier(outcome string) alignmentTier {
	return func() (bool, string, bool) {
		outcome := strings.TrimSpace(outcome)
		if outcome == "" {
			return false, "", false
		}
		return outcome == "pass", outcome, true
	}
}

// authResultsTier scans the raw mechanism entries: aligned if any entry
// passed, the recorded result is the first non empty one.
func authResultsTier(entries []AuthResult) alignmentTier {
	return func() (bool, string, bool) {
		aligned := false
		first := ""
		for _, entry := range entries {
			result := strings.TrimSpace(entry.Result)
			if result == "pass" {
				aligned = true
			}
			if first == "" {
				first = result
			}
		}
		if first == "" {
			return false, "", false
		}
		return aligned, first, true
	}
}
