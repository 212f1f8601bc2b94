package realtime

import "strings"

// Affirmative tokens that signal the caller agreed to continue.
var affirmativeTokens = map[string]struct{}{
	"yes":        {},
	"yeah":       {},
	"yep":        {},
	"yup":        {},
	"sure":       {},
	"okay":       {},
	"ok":         {},
	"correct":    {},
	"absolutely": {},
	"certainly":  {},
	"definitely": {},
	"alright":    {},
}

// Hedge words that withdraw an otherwise affirmative utterance. A caller
// saying "um okay maybe" has not consented.
var hedgeTokens = map[string]struct{}{
	"maybe": {},
	"not":   {},
	"no":    {},
	"later": {},
	"busy":  {},
	"can't": {},
	"cant":  {},
	"dont":  {},
	"don't": {},
}

// IsAffirmative reports whether a caller transcript counts as explicit
// consent: it must contain an affirmative token and no hedge word.
func IsAffirmative(transcript string) bool {
	affirmed := false
	for _, word := range strings.FieldsFunc(strings.ToLower(transcript), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?' || r == ';' || r == ':'
	}) {
		if _, ok := hedgeTokens[word]; ok {
			return false
		}
		if _, ok := affirmativeTokens[word]; ok {
			affirmed = true
		}
	}
	return affirmed
}
