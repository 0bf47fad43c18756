package domain

// Presentation modes for status options.
const (
	OptionsModeFlat = "flat"
	OptionsModeRich = "rich"
)

// StatusOption is one next-state shown to the operator.
type StatusOption struct {
	Value                Status `json:"value"`
	Label                string `json:"label"`
	Color                string `json:"color,omitempty"`
	Icon                 string `json:"icon,omitempty"`
	RequiresFollowUpDate bool   `json:"requires_follow_up_date"`
}

// StatusOptions is what the status picker renders. Early-stage statuses get
// plain values; later stages get the rich form.
type StatusOptions struct {
	Current  Status         `json:"current"`
	Mode     string         `json:"mode"`
	Values   []Status       `json:"values,omitempty"`
	Options  []StatusOption `json:"options,omitempty"`
	Terminal bool           `json:"terminal"`
	// AssignRequired is set when the lead leaves its status only by being assigned.
	AssignRequired bool `json:"assign_required"`
}

// Options describes the next states of s for display.
func Options(s Status) StatusOptions {
	spec := statusTable[s]
	out := StatusOptions{Current: s, Terminal: spec.terminal, AssignRequired: spec.assignOnly}

	if spec.earlyStage {
		out.Mode = OptionsModeFlat
		out.Values = NextStates(s)
		return out
	}

	out.Mode = OptionsModeRich
	out.Options = make([]StatusOption, 0, len(spec.next))
	for _, n := range spec.next {
		ns := statusTable[n]
		out.Options = append(out.Options, StatusOption{
			Value:                n,
			Label:                ns.label,
			Color:                ns.color,
			Icon:                 ns.icon,
			RequiresFollowUpDate: ns.requiresFollowUp,
		})
	}
	return out
}

// Label returns the display name of s.
func (s Status) Label() string {
	if l := statusTable[s].label; l != "" {
		return l
	}
	return string(s)
}
