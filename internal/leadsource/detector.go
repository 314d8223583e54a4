// Package leadsource classifies where an inbound email thread came from.
// Detection is a pure function over sender, subject and body; it performs no
// I/O and never fails. The result is recomputed on demand and must not be
// treated as a persisted source of truth.
package leadsource

import "strings"

// Known lead sources, ordered from most to least specific.
const (
	SourceTreBygge     = "3byggetilbud"
	SourceByggetilbud  = "byggetilbud"
	SourceServiceMagic = "servicemagic"
	SourceAgeras       = "ageras"
	SourceWebsite      = "website"
	SourceReferral     = "referral"
	SourceDirect       = "direct"
)

// Detection is the value object returned by Detect. Confidence is 0-100.
type Detection struct {
	Source          string   `json:"source"`
	Confidence      int      `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	MatchedPatterns []string `json:"matchedPatterns"`
}

// rule is one ordered pattern rule. Domain patterns match the sender address,
// text patterns match subject and body. The first rule with any match wins.
type rule struct {
	source      string
	confidence  int
	reasoning   string
	domainParts []string
	textParts   []string
}

// Rule order matters: partner portals overlap textually with the generic
// website rule ("tilbud" appears in both), so the specific portals are
// checked first. Do not reorder.
var rules = []rule{
	{
		source:      SourceTreBygge,
		confidence:  95,
		reasoning:   "Afsender eller emne matcher 3byggetilbud-portalen",
		domainParts: []string{"3byggetilbud.dk"},
		textParts:   []string{"3byggetilbud"},
	},
	{
		source:      SourceByggetilbud,
		confidence:  90,
		reasoning:   "Afsender eller emne matcher byggetilbud-portalen",
		domainParts: []string{"byggetilbud.dk"},
		textParts:   []string{"byggetilbud"},
	},
	{
		source:      SourceServiceMagic,
		confidence:  90,
		reasoning:   "Afsender eller emne matcher ServiceMagic",
		domainParts: []string{"servicemagic.dk"},
		textParts:   []string{"servicemagic"},
	},
	{
		source:      SourceAgeras,
		confidence:  90,
		reasoning:   "Afsender eller emne matcher Ageras",
		domainParts: []string{"ageras.com", "ageras.dk"},
		textParts:   []string{"ageras"},
	},
	{
		source:     SourceWebsite,
		confidence: 75,
		reasoning:  "Henvendelse via kontaktformular på egen hjemmeside",
		textParts:  []string{"kontaktformular", "via hjemmesiden", "ny henvendelse fra din hjemmeside"},
	},
	{
		source:     SourceReferral,
		confidence: 60,
		reasoning:  "Kunden nævner en anbefaling",
		textParts:  []string{"anbefalet af", "anbefaling fra", "hørt om jer fra"},
	},
}

// Detect classifies a thread's origin from its sender, subject and body.
// It is deterministic, never errors, and always returns a value; when nothing
// matches it falls back to a low-confidence direct classification.
func Detect(from, subject, body string) Detection {
	fromLower := strings.ToLower(from)
	textLower := strings.ToLower(subject + " " + body)

	for _, r := range rules {
		var matched []string
		for _, part := range r.domainParts {
			if strings.Contains(fromLower, part) {
				matched = append(matched, part)
			}
		}
		for _, part := range r.textParts {
			if strings.Contains(textLower, part) {
				matched = append(matched, part)
			}
		}
		if len(matched) > 0 {
			return Detection{
				Source:          r.source,
				Confidence:      r.confidence,
				Reasoning:       r.reasoning,
				MatchedPatterns: matched,
			}
		}
	}

	confidence := 30
	if strings.TrimSpace(subject) == "" && strings.TrimSpace(body) == "" {
		confidence = 0
	}

	return Detection{
		Source:     SourceDirect,
		Confidence: confidence,
		Reasoning:  "Ingen kendte kilde-mønstre fundet, antager direkte henvendelse",
	}
}
