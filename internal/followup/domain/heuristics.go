package domain

import "strings"

// Interrogative markers that indicate the customer asked something and is
// waiting on an answer.
var questionPhrases = []string{
	"hvornår",
	"hvordan",
	"hvorfor",
	"kan du",
	"kan i",
	"vil du",
	"må jeg",
}

// Commercial keywords that mark a thread as quote or payment related.
var commercialKeywords = []string{
	"tilbud",
	"forespørgsel",
	"faktura",
	"betaling",
	"regning",
	"pris",
}

// ContainsQuestion reports whether body reads as an open question. A literal
// question mark counts, as do the Danish interrogatives.
func ContainsQuestion(body string) bool {
	if strings.Contains(body, "?") {
		return true
	}
	lower := strings.ToLower(body)
	for _, phrase := range questionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ContainsCommercialKeywords reports whether the text mentions a quote,
// invoice or payment.
func ContainsCommercialKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range commercialKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// NeedsFollowup is the content-only part of the follow-up decision. The
// caller is responsible for the active-reminder and last-sender checks, which
// require I/O. Deterministic, never fails.
func NeedsFollowup(subject, body string) bool {
	if ContainsQuestion(body) {
		return true
	}
	return ContainsCommercialKeywords(subject + " " + body)
}
