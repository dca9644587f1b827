package query

import (
	"regexp"
	"strings"
)

// Registry field names used in AREA[] expressions.
const (
	FieldCondition         = "Condition"
	FieldInterventionName  = "InterventionName"
	FieldInterventionType  = "InterventionType"
	FieldPhase             = "Phase"
	FieldOverallStatus     = "OverallStatus"
	FieldStudyType         = "StudyType"
	FieldLocationCity      = "LocationCity"
	FieldLocationState     = "LocationState"
	FieldLocationCountry   = "LocationCountry"
	FieldMinimumAge        = "MinimumAge"
	FieldMaximumAge        = "MaximumAge"
	FieldSex               = "Sex"
	FieldHealthyVolunteers = "HealthyVolunteers"
	FieldHasResults        = "HasResults"
)

// Upstream query parameter names.
const (
	ParamAdvanced      = "filter.advanced"
	ParamOverallStatus = "filter.overallStatus"
	ParamGeo           = "filter.geo"
	ParamTerm          = "query.term"
	ParamCondition     = "query.cond"
	ParamIntervention  = "query.intr"
	ParamLocation      = "query.locn"
	ParamSponsor       = "query.spons"
	ParamSort          = "sort"
	ParamFields        = "fields"
)

// Canonical phase tokens.
const (
	PhaseEarly1 = "EARLY_PHASE1"
	Phase1      = "PHASE1"
	Phase2      = "PHASE2"
	Phase3      = "PHASE3"
	Phase4      = "PHASE4"
	PhaseNA     = "NA"
)

// SummaryFields is the compact field selection used for search listings.
var SummaryFields = []string{
	"NCTId",
	"BriefTitle",
	"OverallStatus",
	"Phase",
	"Condition",
	"InterventionName",
	"LeadSponsorName",
	"EnrollmentCount",
}

// StandardFields extends SummaryFields with eligibility, dates and locations.
var StandardFields = append(append([]string{}, SummaryFields...),
	"OfficialTitle",
	"BriefSummary",
	"DetailedDescription",
	"StudyType",
	"DesignPrimaryPurpose",
	"EligibilityCriteria",
	"MinimumAge",
	"MaximumAge",
	"Sex",
	"HealthyVolunteers",
	"PrimaryOutcomeMeasure",
	"SecondaryOutcomeMeasure",
	"StartDate",
	"CompletionDate",
	"LocationCity",
	"LocationState",
	"LocationCountry",
	"LocationFacility",
	"CentralContactName",
	"CentralContactPhone",
	"CentralContactEMail",
)

// phaseNumbers maps the numeric part of a phase phrase to its ordinal.
var phaseNumbers = map[string]int{
	"1": 1, "i": 1,
	"2": 2, "ii": 2,
	"3": 3, "iii": 3,
	"4": 4, "iv": 4,
}

// compactPhases maps phase spellings with spaces, underscores and dashes
// removed to the canonical token.
var compactPhases = map[string]string{
	"PHASE1": Phase1, "PHASEI": Phase1, "1": Phase1, "I": Phase1,
	"PHASE2": Phase2, "PHASEII": Phase2, "2": Phase2, "II": Phase2,
	"PHASE3": Phase3, "PHASEIII": Phase3, "3": Phase3, "III": Phase3,
	"PHASE4": Phase4, "PHASEIV": Phase4, "4": Phase4, "IV": Phase4,
	"EARLYPHASE1": PhaseEarly1, "EARLYPHASEI": PhaseEarly1,
	"NA": PhaseNA,
}

// statusRule is one entry of the status vocabulary. Rules are ordered
// longest phrase first so "not yet recruiting" wins over "recruiting".
type statusRule struct {
	phrase  string
	token   string
	pattern *regexp.Regexp
}

var statusRules = newStatusRules([][2]string{
	{"active not recruiting", "ACTIVE_NOT_RECRUITING"},
	{"not yet recruiting", "NOT_YET_RECRUITING"},
	{"recruiting", "RECRUITING"},
	{"active", "ACTIVE_NOT_RECRUITING"},
	{"completed", "COMPLETED"},
	{"suspended", "SUSPENDED"},
	{"terminated", "TERMINATED"},
	{"withdrawn", "WITHDRAWN"},
})

func newStatusRules(pairs [][2]string) []statusRule {
	rules := make([]statusRule, 0, len(pairs))
	for _, p := range pairs {
		words := strings.Fields(p[0])
		expr := `(?i)\b` + strings.Join(words, `\s+`) + `\b\s*(?:trials?|stud(?:y|ies))?`
		rules = append(rules, statusRule{
			phrase:  p[0],
			token:   p[1],
			pattern: regexp.MustCompile(expr),
		})
	}
	return rules
}

// interventionTypes and studyTypes are the accepted enum values.
var interventionTypes = map[string]bool{
	"DRUG":                true,
	"DEVICE":              true,
	"BIOLOGICAL":          true,
	"PROCEDURE":           true,
	"RADIATION":           true,
	"BEHAVIORAL":          true,
	"GENETIC":             true,
	"DIETARY_SUPPLEMENT":  true,
	"COMBINATION_PRODUCT": true,
	"DIAGNOSTIC_TEST":     true,
	"OTHER":               true,
}

var studyTypes = map[string]bool{
	"INTERVENTIONAL":  true,
	"OBSERVATIONAL":   true,
	"EXPANDED_ACCESS": true,
}

var sortOrders = map[string]string{
	"RELEVANCE":        "@relevance",
	"ENROLLMENT_COUNT": "EnrollmentCount:desc",
	"LAST_UPDATE":      "LastUpdatePostDate:desc",
	"COMPLETION_DATE":  "CompletionDate:desc",
	"START_DATE":       "StartDate:desc",
}

// NormalizePhase maps a caller-supplied phase ("phase 3", "Phase III",
// "phase3", "3") to the canonical token. Unknown values are upper-cased.
func NormalizePhase(phase string) string {
	upper := strings.ToUpper(strings.TrimSpace(phase))
	compact := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(upper)
	if token, ok := compactPhases[compact]; ok {
		return token
	}
	return strings.Join(strings.Fields(upper), "_")
}

// NormalizeStatus maps a status keyword or enum value to the canonical
// overall-status token.
func NormalizeStatus(status string) string {
	lower := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(status, "_", " ")), " "))
	for _, rule := range statusRules {
		if rule.phrase == lower {
			return rule.token
		}
	}
	return strings.ToUpper(strings.ReplaceAll(lower, " ", "_"))
}
