// Package domain provides core business rules for the email pipeline bounded context.
package domain

// Pipeline stages an email thread moves through. The Danish values are the
// labels users see and are stored verbatim, so they are part of the
// contract with the frontend and must not be renamed.
const (
	StageNeedsAction   = "needs_action"
	StageAwaitingReply = "venter_pa_svar"
	StageInCalendar    = "i_kalender"
	StageFinance       = "finance"
	StageClosed        = "afsluttet"
)

var knownStages = map[string]struct{}{
	StageNeedsAction:   {},
	StageAwaitingReply: {},
	StageInCalendar:    {},
	StageFinance:       {},
	StageClosed:        {},
}

// IsKnownStage reports whether stage is part of the fixed pipeline enumeration.
func IsKnownStage(stage string) bool {
	_, ok := knownStages[stage]
	return ok
}

// IsTerminalStage reports whether the workflow is complete for this stage.
func IsTerminalStage(stage string) bool {
	return stage == StageClosed
}
