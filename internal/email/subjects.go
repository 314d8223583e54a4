package email

const (
	subjectOverdueReminder   = "Opfølgning forfalden"
	subjectFollowupDigestFmt = "%d opfølgninger venter på dig"
)
