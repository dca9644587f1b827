package query

import (
	"sort"
	"strings"
	"testing"
)

// clauses splits a translated expression into a sorted clause list so
// assertions do not depend on clause order.
func clauses(expr string) []string {
	parts := strings.Split(expr, " AND ")
	sort.Strings(parts)
	return parts
}

func sameClauses(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	w := append([]string{}, want...)
	sort.Strings(w)
	for i := range got {
		if got[i] != w[i] {
			return false
		}
	}
	return true
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "status keyword with filler",
			input: "recruiting trials for diabetes",
			want:  []string{"AREA[Condition]diabetes", "AREA[OverallStatus]RECRUITING"},
		},
		{
			name:  "condition intervention and phase",
			input: "lung cancer AND pembrolizumab in phase 3",
			want: []string{
				`AREA[Condition]"lung cancer"`,
				"AREA[InterventionName]pembrolizumab",
				"AREA[Phase]PHASE3",
			},
		},
		{
			name:  "roman numeral phase",
			input: "asthma phase III",
			want:  []string{"AREA[Condition]asthma", "AREA[Phase]PHASE3"},
		},
		{
			name:  "duplicate phase phrases collapse",
			input: "phase 2 phase II melanoma",
			want:  []string{"AREA[Condition]melanoma", "AREA[Phase]PHASE2"},
		},
		{
			name:  "early phase",
			input: "early phase 1 glioma",
			want:  []string{"AREA[Condition]glioma", "AREA[Phase]EARLY_PHASE1"},
		},
		{
			name:  "not yet recruiting is not plain recruiting",
			input: "not yet recruiting studies for psoriasis",
			want:  []string{"AREA[Condition]psoriasis", "AREA[OverallStatus]NOT_YET_RECRUITING"},
		},
		{
			name:  "location phrase",
			input: "breast cancer trials in Germany",
			want:  []string{`AREA[Condition]"breast cancer"`, `AREA[LocationCountry]"Germany"`},
		},
		{
			name:  "location keeps following connective",
			input: "hypertension near Boston AND lisinopril",
			want: []string{
				"AREA[Condition]hypertension",
				"AREA[InterventionName]lisinopril",
				`AREA[LocationCountry]"Boston"`,
			},
		},
		{
			name:  "or connective splits terms",
			input: "atorvastatin or heart failure",
			want:  []string{"AREA[InterventionName]atorvastatin", `AREA[Condition]"heart failure"`},
		},
		{
			name:  "intervention suffixes",
			input: "imatinib AND metoprolol AND amoxicillin",
			want: []string{
				"AREA[InterventionName]imatinib",
				"AREA[InterventionName]metoprolol",
				"AREA[InterventionName]amoxicillin",
			},
		},
		{
			name:  "completed withdrawn",
			input: "completed or withdrawn trials with obesity",
			want: []string{
				"AREA[Condition]obesity",
				"AREA[OverallStatus]COMPLETED",
				"AREA[OverallStatus]WITHDRAWN",
			},
		},
	}

	tr := NewTranslator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.Translate(tt.input)
			if !sameClauses(clauses(got), tt.want) {
				t.Errorf("Translate(%q) = %q, want clauses %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTranslate_ScopedPassThrough(t *testing.T) {
	tr := NewTranslator()
	inputs := []string{
		"AREA[Condition]lung cancer",
		`SEARCH[Location](AREA[LocationCity]"Paris")`,
		"  AREA[Phase]PHASE2 AND recruiting  ",
	}
	for _, in := range inputs {
		if got := tr.Translate(in); got != in {
			t.Errorf("Translate(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestTranslate_Idempotent(t *testing.T) {
	tr := NewTranslator()
	first := tr.Translate("recruiting trials for diabetes in phase 2")
	if second := tr.Translate(first); second != first {
		t.Errorf("second Translate = %q, want %q", second, first)
	}
}

func TestTranslate_Deterministic(t *testing.T) {
	tr := NewTranslator()
	input := "lung cancer AND pembrolizumab in phase 3 recruiting"
	want := tr.Translate(input)
	for i := 0; i < 20; i++ {
		if got := tr.Translate(input); got != want {
			t.Fatalf("run %d: Translate = %q, want %q", i, got, want)
		}
	}
}

func TestTranslate_Fallback(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"   ", ""},
		{"the trials", `AREA[Condition]"the trials"`},
		{"for with", `AREA[Condition]"for with"`},
		{"trials", `AREA[Condition]"trials"`},
		{" the ", `AREA[Condition]"the"`},
		{`"studies"`, `AREA[Condition]"studies"`},
	}

	tr := NewTranslator()
	for _, tt := range tests {
		if got := tr.Translate(tt.input); got != tt.want {
			t.Errorf("Translate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTranslate_NoDuplicateClauses(t *testing.T) {
	tr := NewTranslator()
	got := tr.Translate("diabetes AND diabetes in phase 2 phase 2")
	seen := map[string]bool{}
	for _, c := range strings.Split(got, " AND ") {
		if seen[c] {
			t.Errorf("duplicate clause %q in %q", c, got)
		}
		seen[c] = true
	}
}

func TestStages(t *testing.T) {
	t.Run("phase", func(t *testing.T) {
		got, rest := phaseStage("melanoma in phase 2")
		if len(got) != 1 || got[0] != "AREA[Phase]PHASE2" {
			t.Errorf("phaseStage clauses = %v", got)
		}
		if strings.TrimSpace(rest) != "melanoma" {
			t.Errorf("phaseStage rest = %q, want melanoma", rest)
		}
	})

	t.Run("status", func(t *testing.T) {
		got, rest := statusStage("active trials for copd")
		if len(got) != 1 || got[0] != "AREA[OverallStatus]ACTIVE_NOT_RECRUITING" {
			t.Errorf("statusStage clauses = %v", got)
		}
		if strings.Contains(rest, "active") || strings.Contains(rest, "trials") {
			t.Errorf("statusStage rest = %q, keyword not stripped", rest)
		}
	})

	t.Run("location skips articles", func(t *testing.T) {
		got, _ := locationStage("cancer in a")
		if len(got) != 0 {
			t.Errorf("locationStage clauses = %v, want none", got)
		}
	})

	t.Run("cleanup", func(t *testing.T) {
		if got := cleanFiller("the  trials for   a study with asthma"); got != "asthma" {
			t.Errorf("cleanFiller = %q, want asthma", got)
		}
	})
}
