package domain

import "strings"

// Task types classify what kind of job a thread is about. The classification
// drives the calendar event emoji and the invoice product code.
const (
	TaskTypeWindowCleaning = "vinduespudsning"
	TaskTypeCleaning       = "rengoring"
	TaskTypeGarden         = "havearbejde"
	TaskTypeHandyman       = "handyman"
	TaskTypeMoveOut        = "flytterengoring"
	TaskTypeOther          = "andet"
)

var taskTypeEmoji = map[string]string{
	TaskTypeWindowCleaning: "🪟",
	TaskTypeCleaning:       "🧹",
	TaskTypeGarden:         "🌿",
	TaskTypeHandyman:       "🔧",
	TaskTypeMoveOut:        "📦",
	TaskTypeOther:          "📋",
}

// Product IDs in the invoicing system's catalog, one per task type.
var taskTypeProductID = map[string]string{
	TaskTypeWindowCleaning: "prod-vinduer",
	TaskTypeCleaning:       "prod-rengoring",
	TaskTypeGarden:         "prod-have",
	TaskTypeHandyman:       "prod-handyman",
	TaskTypeMoveOut:        "prod-flytte",
	TaskTypeOther:          "prod-diverse",
}

// taskTypeKeywords maps task types to the Danish keywords that identify
// them in subject or body text. Move-out cleaning is listed before regular
// cleaning because "flytterengøring" contains "rengøring".
var taskTypeKeywords = []struct {
	taskType string
	keywords []string
}{
	{TaskTypeMoveOut, []string{"flytterengøring", "flytterengoring", "fraflytning"}},
	{TaskTypeWindowCleaning, []string{"vinduespudsning", "vinduer", "pudsning"}},
	{TaskTypeCleaning, []string{"rengøring", "rengoring", "hovedrengøring"}},
	{TaskTypeGarden, []string{"havearbejde", "hækklipning", "græsslåning", "have"}},
	{TaskTypeHandyman, []string{"handyman", "reparation", "montering", "opsætning"}},
}

// ClassifyTaskType derives a task type from subject and body keywords.
// Falls back to TaskTypeOther when nothing matches.
func ClassifyTaskType(subject, body string) string {
	text := strings.ToLower(subject + " " + body)
	for _, entry := range taskTypeKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(text, keyword) {
				return entry.taskType
			}
		}
	}
	return TaskTypeOther
}

// TaskTypeEmoji returns the calendar emoji for a task type, falling back to
// the generic one for unknown types.
func TaskTypeEmoji(taskType string) string {
	if emoji, ok := taskTypeEmoji[taskType]; ok {
		return emoji
	}
	return taskTypeEmoji[TaskTypeOther]
}

// TaskTypeProductID returns the invoice product code for a task type, falling
// back to the generic one for unknown types.
func TaskTypeProductID(taskType string) string {
	if id, ok := taskTypeProductID[taskType]; ok {
		return id
	}
	return taskTypeProductID[TaskTypeOther]
}
