package leadsource

import "testing"

func TestDetectPartnerPortals(t *testing.T) {
	tests := []struct {
		name           string
		from           string
		subject        string
		body           string
		wantSource     string
		wantConfidence int
	}{
		{
			name:           "3byggetilbud by sender domain",
			from:           "leads@3byggetilbud.dk",
			subject:        "Ny opgave",
			body:           "En kunde søger vinduespudsning",
			wantSource:     SourceTreBygge,
			wantConfidence: 95,
		},
		{
			name:           "3byggetilbud by subject",
			from:           "noreply@mail.dk",
			subject:        "Nyt lead fra 3byggetilbud",
			body:           "Se opgaven her",
			wantSource:     SourceTreBygge,
			wantConfidence: 95,
		},
		{
			name:           "servicemagic",
			from:           "match@servicemagic.dk",
			subject:        "Opgave i Valby",
			body:           "",
			wantSource:     SourceServiceMagic,
			wantConfidence: 90,
		},
		{
			name:           "website contact form",
			from:           "kunde@gmail.com",
			subject:        "Ny henvendelse fra din hjemmeside",
			body:           "Jeg vil gerne have et tilbud",
			wantSource:     SourceWebsite,
			wantConfidence: 75,
		},
		{
			name:           "referral",
			from:           "kunde@gmail.com",
			subject:        "Vinduespudsning",
			body:           "I er anbefalet af min nabo",
			wantSource:     SourceReferral,
			wantConfidence: 60,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Detect(tc.from, tc.subject, tc.body)
			if got.Source != tc.wantSource {
				t.Errorf("Source = %q, want %q", got.Source, tc.wantSource)
			}
			if got.Confidence != tc.wantConfidence {
				t.Errorf("Confidence = %d, want %d", got.Confidence, tc.wantConfidence)
			}
			if len(got.MatchedPatterns) == 0 {
				t.Error("expected at least one matched pattern")
			}
			if got.Reasoning == "" {
				t.Error("expected a non-empty reasoning")
			}
		})
	}
}

// Overlapping patterns must resolve to the first-checked, more specific rule:
// "3byggetilbud" textually contains "byggetilbud".
func TestDetectRulePriority(t *testing.T) {
	got := Detect("noreply@formidling.dk", "Nyt lead via 3byggetilbud", "")
	if got.Source != SourceTreBygge {
		t.Errorf("Source = %q, want the more specific %q", got.Source, SourceTreBygge)
	}
	if got.Confidence != 95 {
		t.Errorf("Confidence = %d, want the specific rule's 95", got.Confidence)
	}
}

func TestDetectDirectFallback(t *testing.T) {
	got := Detect("kunde@gmail.com", "Spørgsmål om pris", "Hvad koster en pudsning?")
	if got.Source != SourceDirect {
		t.Errorf("Source = %q, want %q", got.Source, SourceDirect)
	}
	if got.Confidence != 30 {
		t.Errorf("Confidence = %d, want 30", got.Confidence)
	}
}

func TestDetectEmptyInputHasZeroConfidence(t *testing.T) {
	got := Detect("kunde@gmail.com", "", "")
	if got.Source != SourceDirect {
		t.Errorf("Source = %q, want %q", got.Source, SourceDirect)
	}
	if got.Confidence != 0 {
		t.Errorf("Confidence = %d, want 0 for empty subject and body", got.Confidence)
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	first := Detect("leads@3byggetilbud.dk", "Ny opgave", "vinduespudsning")
	second := Detect("leads@3byggetilbud.dk", "Ny opgave", "vinduespudsning")
	if first.Source != second.Source || first.Confidence != second.Confidence {
		t.Errorf("same input produced different detections: %+v vs %+v", first, second)
	}
}
