package dmarc

// XMLReport represents the top element of a DMARC aggregate report
// https://tools.ietf.org/html/rfc7489#appendix-C
//
// The xml tags carry no namespace on purpose: vendors are inconsistent about
// declaring the dmarc.org namespace (some use a prefix, some a default
// namespace, some none at all), and encoding/xml matches elements by local
// name when the tag leaves the namespace out. The structural blocks are
// pointers so a missing block can be told apart from an empty one.
type XMLReport struct {
	Version         string           `xml:"version"`
	ReportMetadata  *ReportMetadata  `xml:"report_metadata"`
	PolicyPublished *PolicyPublished `xml:"policy_published"`
	Records         []XMLRecord      `xml:"record"`
}

// ReportMetadata represents the report_metadata element
type ReportMetadata struct {
	OrgName          string     `xml:"org_name"`
	Email            string     `xml:"email"`
	ExtraContactInfo string     `xml:"extra_contact_info"`
	ReportID         string     `xml:"report_id"`
	DateRange        *DateRange `xml:"date_range"`
	Errors           []string   `xml:"error"`
}

// DateRange represents the reporting period as unix timestamps
type DateRange struct {
	Begin int64 `xml:"begin"`
	End   int64 `xml:"end"`
}

// PolicyPublished represents the policy_published element. Pct stays a
// string because some vendors send empty or non numeric values.
type PolicyPublished struct {
	Domain string `xml:"domain"`
	Adkim  string `xml:"adkim"`
	Aspf   string `xml:"aspf"`
	P      string `xml:"p"`
	Sp     string `xml:"sp"`
	Pct    string `xml:"pct"`
	Fo     string `xml:"fo"`
}

// XMLRecord represents the record element of a DMARC report
type XMLRecord struct {
	Row         *Row         `xml:"row"`
	Identifiers *Identifiers `xml:"identifiers"`
	AuthResults *AuthResults `xml:"auth_results"`
}

// Row represents the per source ip row of a record
type Row struct {
	SourceIP        string           `xml:"source_ip"`
	Count           int              `xml:"count"`
	PolicyEvaluated *PolicyEvaluated `xml:"policy_evaluated"`
}

// PolicyEvaluated represents the outcome the receiver applied
type PolicyEvaluated struct {
	Disposition string                 `xml:"disposition"`
	Dkim        string                 `xml:"dkim"`
	Spf         string                 `xml:"spf"`
	Reason      []PolicyOverrideReason `xml:"reason"`
}

// PolicyOverrideReason represents the reason element of a DMARC report
type PolicyOverrideReason struct {
	Type    string `xml:"type"`
	Comment string `xml:"comment"`
}

// Identifiers represents the identifiers element
type Identifiers struct {
	EnvelopeTo   string `xml:"envelope_to"`
	HeaderFrom   string `xml:"header_from"`
	EnvelopeFrom string `xml:"envelope_from"`
}

// AuthResults represents the auth_results element. A record may carry
// multiple dkim and spf entries, one per signature or checked domain.
type AuthResults struct {
	Dkim []AuthResult `xml:"dkim"`
	Spf  []AuthResult `xml:"spf"`
}

// AuthResult represents a single dkim or spf result entry
type AuthResult struct {
	Domain      string `xml:"domain"`
	Selector    string `xml:"selector"`
	Scope       string `xml:"scope"`
	Result      string `xml:"result"`
	HumanResult string `xml:"human_result"`
}
