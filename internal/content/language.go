package content

import "strings"

// stopwordProfiles is a short, closed set of very common function words
// per language. A full n-gram classifier would compare character trigram
// frequencies against a trained profile; this is the same idea reduced to
// the smallest signal that separates the languages the pipeline is
// actually expected to see.
var stopwordProfiles = map[string]map[string]bool{
	"en": {"the": true, "and": true, "is": true, "of": true, "to": true, "in": true, "a": true, "that": true, "for": true, "with": true},
	"es": {"el": true, "la": true, "de": true, "que": true, "y": true, "en": true, "los": true, "las": true, "un": true, "una": true},
	"fr": {"le": true, "la": true, "de": true, "et": true, "les": true, "des": true, "un": true, "une": true, "que": true, "dans": true},
	"de": {"der": true, "die": true, "das": true, "und": true, "ist": true, "von": true, "den": true, "mit": true, "ein": true, "eine": true},
	"pt": {"o": true, "a": true, "de": true, "que": true, "e": true, "em": true, "um": true, "para": true, "com": true, "os": true},
}

// DetectLanguage reports the dominant language of text. Too-short text
// yields no detection; otherwise the language whose stopword profile
// matches the most words wins, defaulting to "en" when no profile scores
// above zero.
func DetectLanguage(text string) string {
	if len([]rune(text)) < 50 {
		return ""
	}

	words := strings.Fields(strings.ToLower(text))
	scores := make(map[string]int, len(stopwordProfiles))
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()[]{}")
		for lang, set := range stopwordProfiles {
			if set[w] {
				scores[lang]++
			}
		}
	}

	best := "en"
	bestScore := 0
	for lang, score := range scores {
		if score > bestScore {
			best = lang
			bestScore = score
		}
	}
	return best
}
