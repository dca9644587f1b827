package query

import (
	"strconv"
	"strings"
)

// DefaultRadiusKm is used for proximity searches without an explicit radius.
const DefaultRadiusKm = 50

// Location narrows a search geographically. A proximity filter is produced
// only when both coordinates are set.
type Location struct {
	City      string   `json:"city,omitempty"`
	State     string   `json:"state,omitempty"`
	Country   string   `json:"country,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	RadiusKm  float64  `json:"radius_km,omitempty"`
}

// SearchIntent is a structured bundle of search filters. Zero-valued
// fields are ignored.
type SearchIntent struct {
	Query             string    `json:"query,omitempty"`
	Condition         string    `json:"condition,omitempty"`
	InterventionName  string    `json:"intervention_name,omitempty"`
	InterventionType  string    `json:"intervention_type,omitempty"`
	Phases            []string  `json:"phases,omitempty"`
	Statuses          []string  `json:"statuses,omitempty"`
	StudyType         string    `json:"study_type,omitempty"`
	Location          *Location `json:"location,omitempty"`
	Sponsor           string    `json:"sponsor,omitempty"`
	MinAge            string    `json:"min_age,omitempty"`
	MaxAge            string    `json:"max_age,omitempty"`
	Sex               string    `json:"sex,omitempty"`
	HealthyVolunteers *bool     `json:"healthy_volunteers,omitempty"`
	HasResults        *bool     `json:"has_results,omitempty"`
	SortBy            string    `json:"sort_by,omitempty"`
	Fields            []string  `json:"fields,omitempty"`
}

// BuildParams converts a structured intent into upstream query parameters.
// Each populated field contributes a parameter or an AND-appended clause
// of filter.advanced. The result is a fresh map owned by the caller.
func (t *Translator) BuildParams(intent SearchIntent) map[string]string {
	params := make(map[string]string)

	if strings.TrimSpace(intent.Query) != "" {
		translated := t.Translate(intent.Query)
		if IsScoped(translated) {
			params[ParamAdvanced] = translated
		} else {
			params[ParamTerm] = intent.Query
		}
	}

	if intent.Condition != "" {
		params[ParamCondition] = intent.Condition
	}

	if intent.InterventionName != "" {
		params[ParamIntervention] = intent.InterventionName
	} else if it := strings.ToUpper(strings.TrimSpace(intent.InterventionType)); interventionTypes[it] {
		appendAdvanced(params, areaClause(FieldInterventionType, it))
	}

	if phases := phaseGroup(intent.Phases); phases != "" {
		appendAdvanced(params, phases)
	}

	if len(intent.Statuses) > 0 {
		statuses := make([]string, 0, len(intent.Statuses))
		for _, s := range intent.Statuses {
			if strings.TrimSpace(s) != "" {
				statuses = append(statuses, NormalizeStatus(s))
			}
		}
		if len(statuses) > 0 {
			params[ParamOverallStatus] = strings.Join(statuses, "|")
		}
	}

	if st := strings.ToUpper(strings.TrimSpace(intent.StudyType)); studyTypes[st] {
		appendAdvanced(params, areaClause(FieldStudyType, st))
	}

	applyLocation(params, intent.Location)

	var eligibility []string
	if intent.MinAge != "" {
		eligibility = append(eligibility, areaClause(FieldMinimumAge, `"`+intent.MinAge+`"`))
	}
	if intent.MaxAge != "" {
		eligibility = append(eligibility, areaClause(FieldMaximumAge, `"`+intent.MaxAge+`"`))
	}
	if intent.Sex != "" {
		eligibility = append(eligibility, areaClause(FieldSex, strings.ToUpper(intent.Sex)))
	}
	if intent.HealthyVolunteers != nil {
		value := "No"
		if *intent.HealthyVolunteers {
			value = "Yes"
		}
		eligibility = append(eligibility, areaClause(FieldHealthyVolunteers, value))
	}
	if len(eligibility) > 0 {
		appendAdvanced(params, strings.Join(eligibility, " AND "))
	}

	if intent.HasResults != nil {
		appendAdvanced(params, areaClause(FieldHasResults, strconv.FormatBool(*intent.HasResults)))
	}

	if intent.Sponsor != "" {
		params[ParamSponsor] = intent.Sponsor
	}

	if intent.SortBy != "" {
		sort, ok := sortOrders[strings.ToUpper(intent.SortBy)]
		if !ok {
			sort = sortOrders["RELEVANCE"]
		}
		params[ParamSort] = sort
	}

	if len(intent.Fields) > 0 {
		params[ParamFields] = strings.Join(intent.Fields, "|")
	}

	return params
}

func phaseGroup(phases []string) string {
	var clauses []string
	for _, p := range phases {
		if strings.TrimSpace(p) == "" {
			continue
		}
		clauses = appendUnique(clauses, areaClause(FieldPhase, NormalizePhase(p)))
	}
	if len(clauses) == 0 {
		return ""
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

func applyLocation(params map[string]string, loc *Location) {
	if loc == nil {
		return
	}
	if loc.Latitude != nil && loc.Longitude != nil {
		radius := loc.RadiusKm
		if radius <= 0 {
			radius = DefaultRadiusKm
		}
		params[ParamGeo] = "distance(" + formatFloat(*loc.Latitude) + "," +
			formatFloat(*loc.Longitude) + "," + formatFloat(radius) + "km)"
		return
	}
	if loc.City == "" && loc.State == "" {
		if loc.Country != "" {
			params[ParamLocation] = loc.Country
		}
		return
	}

	var parts []string
	if loc.City != "" {
		parts = append(parts, areaClause(FieldLocationCity, `"`+loc.City+`"`))
	}
	if loc.State != "" {
		parts = append(parts, areaClause(FieldLocationState, `"`+loc.State+`"`))
	}
	if loc.Country != "" {
		parts = append(parts, areaClause(FieldLocationCountry, `"`+loc.Country+`"`))
	}
	appendAdvanced(params, "SEARCH[Location]("+strings.Join(parts, " AND ")+")")
}

// appendAdvanced extends filter.advanced with AND instead of replacing it.
func appendAdvanced(params map[string]string, clause string) {
	if existing := params[ParamAdvanced]; existing != "" {
		params[ParamAdvanced] = existing + " AND " + clause
		return
	}
	params[ParamAdvanced] = clause
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
