package refinement

import (
	"regexp"

	"github.com/turtacn/clauselens/pkg/types/profile"
)

// Filter and merge thresholds.
const (
	MinSpanConfidence = 0.55
	MinSpanLength     = 25
	MergeGapChars     = 8
	MaxEvidenceLen    = 240
)

// Date roles assigned during refinement.
const (
	RoleEffectiveStart  = "EFFECTIVE_START"
	RoleReadinessReview = "READINESS_REVIEW"
	RoleFilingDeadline  = "FILING_DEADLINE"
	RoleSunset          = "SUNSET"
	RoleTransitionEnd   = "TRANSITION_END"
)

type rolePattern struct {
	role   string
	rx     *regexp.Regexp
	weight float64
}

var rolePatterns = []rolePattern{
	{RoleEffectiveStart, regexp.MustCompile(`\beffective\s+from\b|\bcomes?\s+into\s+force\b|\bcommence(?:s|ment)\b`), 2.0},
	{RoleReadinessReview, regexp.MustCompile(`\breadiness\s+review\b|\binterim\s+review\b|\bmilestone\b|\breview\b`), 1.6},
	{RoleFilingDeadline, regexp.MustCompile(`\b(return|report|filing|submission)s?\s+due\b|\bdue\s+by\b|\bdeadline\b`), 2.2},
	{RoleSunset, regexp.MustCompile(`\bexpires\b|\bsunset\b|\bceases?\s+to\s+apply\b`), 1.8},
	{RoleTransitionEnd, regexp.MustCompile(`\btransition(?:al)?\s+period\b|\bgrace\s+period\b|\buntil\b`), 1.4},
}

type rolePrior struct {
	role   string
	weight float64
}

// sectionPriors are added to pattern scores; each list is applied in order.
var sectionPriors = map[string][]rolePrior{
	"Compliance & Regulatory":  {{RoleEffectiveStart, 0.6}, {RoleFilingDeadline, 0.5}, {RoleReadinessReview, 0.4}},
	"Disclosure & Reporting":   {{RoleFilingDeadline, 0.7}},
	"Contracting Requirements": {{RoleEffectiveStart, 0.2}},
	"Governance & Risk":        {{RoleReadinessReview, 0.3}},
}

var dueRx = regexp.MustCompile(`\bdue\b|\bdeadline\b`)

// bucketOf maps a clause category to its bucket.
var bucketOf = func() map[string]profile.Bucket {
	members := map[profile.Bucket][]string{
		profile.BucketObligations: {"Audit_Records", "Obligations", "Compliance_Regulatory", "Access_Control",
			"Security_Measures", "BYOD_Endpoint_Security", "Contracting_Requirements", "Data_Security"},
		profile.BucketRights:            {"Rights"},
		profile.BucketPenalties:         {"Enforcement_Penalties", "Compliance_Termination", "Deletion_Return"},
		profile.BucketSafety:            {"Health_Safety"},
		profile.BucketDisputeResolution: {"Dispute_Resolution_Arbitration", "Industrial_Relations"},
		profile.BucketFilingsReporting: {"Disclosure_Reporting", "Notices", "Incident_Reporting",
			"Reporting_Incident", "Disclosure_Privacy_Requirements"},
		profile.BucketGovernance:      {"Governance_Risk", "Corporate_Governance", "Statutory_Interpretation"},
		profile.BucketCrossReferences: {"Cross_Reference"},
	}
	m := make(map[string]profile.Bucket)
	for b, cats := range members {
		for _, c := range cats {
			m[c] = b
		}
	}
	return m
}()

// BucketFor returns the bucket a category belongs to.
func BucketFor(category string) (profile.Bucket, bool) {
	b, ok := bucketOf[category]
	return b, ok
}

var (
	scopeCategories     = map[string]bool{"Definitions": true, "Applicability": true}
	exemptionCategories = map[string]bool{"Industrial_Relations": true, "Applicability": true}
	exemptionRx         = regexp.MustCompile(`\bexemption|excluded\b`)
)

// Document type fallbacks.
const (
	DocTypeLabourCode       = "Labour Compliance Code Summary"
	DocTypeCompliancePolicy = "Compliance Policy"
	DocTypeLegalSummary     = "Legal Summary"
)
