package tools

import (
	"strings"

	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/spf13/cast"
)

// maxSummaryLocations bounds the location list of a summary.
const maxSummaryLocations = 5

// TrialSummary is the flattened view of a study returned by the tools.
type TrialSummary struct {
	NCTID          string   `json:"nct_id"`
	Title          string   `json:"title"`
	OfficialTitle  string   `json:"official_title,omitempty"`
	Status         string   `json:"status"`
	Phases         []string `json:"phase"`
	StudyType      string   `json:"study_type,omitempty"`
	Conditions     []string `json:"conditions"`
	Interventions  []string `json:"interventions"`
	Sponsor        string   `json:"sponsor,omitempty"`
	SponsorClass   string   `json:"sponsor_class,omitempty"`
	Enrollment     *int     `json:"enrollment,omitempty"`
	EnrollmentType string   `json:"enrollment_type,omitempty"`
	StartDate      string   `json:"start_date,omitempty"`
	CompletionDate string   `json:"completion_date,omitempty"`
	Locations      []string `json:"locations"`
}

// Summarize extracts a TrialSummary from a study body. Missing sections
// yield zero values.
func Summarize(study client.Study) TrialSummary {
	protocol := section(study, "protocolSection")
	id := section(protocol, "identificationModule")
	status := section(protocol, "statusModule")
	design := section(protocol, "designModule")
	sponsor := section(section(protocol, "sponsorCollaboratorsModule"), "leadSponsor")
	enrollment := section(design, "enrollmentInfo")

	s := TrialSummary{
		NCTID:          cast.ToString(id["nctId"]),
		Title:          cast.ToString(id["briefTitle"]),
		OfficialTitle:  cast.ToString(id["officialTitle"]),
		Status:         cast.ToString(status["overallStatus"]),
		Phases:         stringList(design["phases"]),
		StudyType:      cast.ToString(design["studyType"]),
		Conditions:     stringList(section(protocol, "conditionsModule")["conditions"]),
		Sponsor:        cast.ToString(sponsor["name"]),
		SponsorClass:   cast.ToString(sponsor["class"]),
		EnrollmentType: cast.ToString(enrollment["type"]),
		StartDate:      cast.ToString(section(status, "startDateStruct")["date"]),
		CompletionDate: cast.ToString(section(status, "completionDateStruct")["date"]),
		Interventions:  []string{},
		Locations:      []string{},
	}

	if count, err := cast.ToIntE(enrollment["count"]); err == nil && enrollment["count"] != nil {
		s.Enrollment = &count
	}

	for _, item := range cast.ToSlice(section(protocol, "armsInterventionsModule")["interventions"]) {
		if name := cast.ToString(cast.ToStringMap(item)["name"]); name != "" {
			s.Interventions = append(s.Interventions, name)
		}
	}

	for _, item := range cast.ToSlice(section(protocol, "contactsLocationsModule")["locations"]) {
		if len(s.Locations) == maxSummaryLocations {
			break
		}
		loc := cast.ToStringMap(item)
		var parts []string
		for _, key := range []string{"city", "state", "country"} {
			if v := cast.ToString(loc[key]); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			s.Locations = append(s.Locations, strings.Join(parts, ", "))
		}
	}

	return s
}

func section(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	return cast.ToStringMap(m[key])
}

func stringList(v any) []string {
	if v == nil {
		return []string{}
	}
	return cast.ToStringSlice(v)
}
