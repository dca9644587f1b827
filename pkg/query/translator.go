// Package query translates search intents into the registry's field-scoped
// boolean query syntax (AREA[Field]value expressions joined with AND/OR).
package query

import (
	"regexp"
	"strings"
)

var (
	phasePattern = regexp.MustCompile(`(?i)\b(?:in\s+)?(early\s+)?phase\s*(iv|iii|ii|i|[1-4])\b`)

	locationPattern = regexp.MustCompile(`(?i)\b(?:in|near|at)\s+([a-z][a-z\s]*?)\s*(?:\b(?:and|or)\b|,|$)`)

	fillerPattern = regexp.MustCompile(`(?i)\b(?:trials?|stud(?:y|ies)|for|with|the|a|an)\b`)

	connectivePattern = regexp.MustCompile(`(?i)(?:^|\s+)(?:and|or)(?:\s+|$)`)

	interventionSuffix = regexp.MustCompile(`(?i)(?:mab|nib|pril|olol|statin|cillin)$`)
)

var articles = map[string]bool{"the": true, "a": true, "an": true}

// stage is one step of the free-text pipeline. It returns the clauses it
// recognised and the text left for the following stages.
type stage func(rest string) (clauses []string, remaining string)

// Translator converts natural-language search phrases and structured
// intents into query parameters. It holds no state and is safe for
// concurrent use.
type Translator struct {
	stages []stage
}

// NewTranslator creates a translator with the standard rule pipeline:
// phase, status, location, filler cleanup, term extraction.
func NewTranslator() *Translator {
	return &Translator{
		stages: []stage{phaseStage, statusStage, locationStage},
	}
}

// IsScoped reports whether text already uses the field-scoped syntax.
func IsScoped(text string) bool {
	return strings.Contains(text, "AREA[") || strings.Contains(text, "SEARCH[")
}

// Translate converts a free-text query into a field-scoped expression.
//
//	"recruiting trials for diabetes"
//	→ AREA[Condition]diabetes AND AREA[OverallStatus]RECRUITING
//
// Text that already contains AREA[ or SEARCH[ is returned unchanged. When
// nothing can be recognised the whole input becomes a quoted condition,
// even a single word.
func (t *Translator) Translate(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if IsScoped(text) {
		return text
	}

	var filters []string
	rest := text
	for _, s := range t.stages {
		var clauses []string
		clauses, rest = s(rest)
		filters = appendUnique(filters, clauses...)
	}

	terms := extractTerms(cleanFiller(rest))
	all := appendUnique(terms, filters...)
	if len(all) == 0 {
		return areaClause(FieldCondition, `"`+strings.ReplaceAll(strings.TrimSpace(text), `"`, "")+`"`)
	}
	return strings.Join(all, " AND ")
}

func phaseStage(rest string) ([]string, string) {
	matches := phasePattern.FindAllStringSubmatch(rest, -1)
	if len(matches) == 0 {
		return nil, rest
	}
	var clauses []string
	for _, m := range matches {
		clauses = appendUnique(clauses, areaClause(FieldPhase, phaseToken(m[1] != "", m[2])))
	}
	return clauses, phasePattern.ReplaceAllString(rest, " ")
}

func phaseToken(early bool, number string) string {
	n := phaseNumbers[strings.ToLower(number)]
	if early && n == 1 {
		return PhaseEarly1
	}
	return compactPhases["PHASE"+strings.ToUpper(number)]
}

func statusStage(rest string) ([]string, string) {
	var clauses []string
	for _, rule := range statusRules {
		if !rule.pattern.MatchString(rest) {
			continue
		}
		clauses = appendUnique(clauses, areaClause(FieldOverallStatus, rule.token))
		rest = rule.pattern.ReplaceAllString(rest, " ")
	}
	return clauses, rest
}

func locationStage(rest string) ([]string, string) {
	loc := locationPattern.FindStringSubmatchIndex(rest)
	if loc == nil {
		return nil, rest
	}
	place := strings.Join(strings.Fields(rest[loc[2]:loc[3]]), " ")
	if strings.HasPrefix(strings.ToLower(place), "phase") {
		return nil, rest
	}
	// The connective after the place stays in the text for term splitting.
	remaining := rest[:loc[0]] + " " + rest[loc[3]:]
	if len(place) <= 2 || articles[strings.ToLower(place)] {
		return nil, remaining
	}
	return []string{areaClause(FieldLocationCountry, `"`+place+`"`)}, remaining
}

func cleanFiller(text string) string {
	return strings.Join(strings.Fields(fillerPattern.ReplaceAllString(text, " ")), " ")
}

func extractTerms(text string) []string {
	if text == "" {
		return nil
	}
	var clauses []string
	for _, term := range connectivePattern.Split(text, -1) {
		term = strings.Trim(term, " ,;.")
		if term == "" {
			continue
		}
		clauses = appendUnique(clauses, categorize(term))
	}
	return clauses
}

// categorize scopes a term to InterventionName when it carries a common
// drug-name suffix and to Condition otherwise.
func categorize(term string) string {
	if interventionSuffix.MatchString(term) {
		return areaClause(FieldInterventionName, quote(term))
	}
	return areaClause(FieldCondition, quote(term))
}

func areaClause(field, value string) string {
	return "AREA[" + field + "]" + value
}

// quote wraps multi-word values in double quotes.
func quote(value string) string {
	value = strings.ReplaceAll(value, `"`, "")
	if strings.ContainsAny(value, " \t") {
		return `"` + value + `"`
	}
	return value
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, existing := range dst {
			if existing == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
