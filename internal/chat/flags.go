package chat

import "strings"

const (
	FlagPotentialMedicalAdvice = "potential_medical_advice"
	FlagCTAPresent             = "cta_present"
)

// Keyword sets for derived interaction flags, French plus Arabic script.
// Flags are advisory annotations, not moderation.
var (
	medicalTerms = []string{"diagnostic", "traitement", "médicament", "maladie", "علاج", "دواء"}
	ctaTerms     = []string{"réserver", "rendez-vous", "حجز", "موعد", "appel", "contact"}
)

// DeriveFlags annotates assistant text with heuristic flags. Each flag
// is an independent case-insensitive substring test; a response can
// carry both, either, or neither.
func DeriveFlags(text string) []string {
	lower := strings.ToLower(text)

	var flags []string
	if containsAny(lower, medicalTerms) {
		flags = append(flags, FlagPotentialMedicalAdvice)
	}
	if containsAny(lower, ctaTerms) {
		flags = append(flags, FlagCTAPresent)
	}

	return flags
}

func containsAny(lower string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
