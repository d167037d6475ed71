package pipeline

import "strings"

// Label is the closed set of question difficulty classes the router
// understands. Anything else is Unknown and produces no SQL.
type Label string

const (
	LabelEasy      Label = "EASY"
	LabelNonNested Label = "NON-NESTED"
	LabelNested    Label = "NESTED"
	LabelUnknown   Label = "UNKNOWN"
)

// Classification keeps the raw label payload next to the parsed label. A
// NESTED payload may embed its sub-questions as a questions = ["..."] marker
// inside the payload text itself; routing depends on that marker being
// present, not on sub-questions arriving separately.
type Classification struct {
	Label   Label
	Payload string
}

// ParseClassification maps a label payload onto the closed label set. The
// NON-NESTED check runs before NESTED because the former contains the latter
// as a substring.
func ParseClassification(payload string) Classification {
	trimmed := strings.TrimSpace(payload)
	upper := strings.ToUpper(trimmed)

	label := LabelUnknown
	switch {
	case strings.HasPrefix(upper, string(LabelEasy)):
		label = LabelEasy
	case strings.HasPrefix(upper, string(LabelNonNested)):
		label = LabelNonNested
	case strings.HasPrefix(upper, string(LabelNested)):
		label = LabelNested
	}
	return Classification{Label: label, Payload: trimmed}
}
