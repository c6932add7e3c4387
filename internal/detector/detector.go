// Package detector identifies the language of a text with lingua-go.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// DefaultLanguages is the set the detector is built from when New is called
// without arguments. A restricted set builds much faster and is more
// accurate on short texts than FromAllLanguages.
var DefaultLanguages = []string{"zh", "en", "ja", "ko", "fr", "de", "es", "ru", "uk"}

type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector for the given ISO 639-1 codes. Unknown codes are
// ignored; with fewer than two known codes the default set is used.
func New(codes ...string) *Detector {
	if len(codes) == 0 {
		codes = DefaultLanguages
	}

	var langs []lingua.Language
	for _, c := range codes {
		if lang, ok := languageOf(c); ok {
			langs = append(langs, lang)
		}
	}
	if len(langs) < 2 {
		langs = langs[:0]
		for _, c := range DefaultLanguages {
			lang, _ := languageOf(c)
			langs = append(langs, lang)
		}
	}

	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(langs...).
		Build()

	return &Detector{detector: detector}
}

func languageOf(code string) (lingua.Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	for _, lang := range lingua.AllLanguages() {
		if strings.ToLower(lang.IsoCode639_1().String()) == code {
			return lang, true
		}
	}
	return lingua.Unknown, false
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the lower-case ISO 639-1 code of text's language.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// Resolve returns the detected code, or fallback when detection fails.
func (d *Detector) Resolve(text, fallback string) string {
	if code, ok := d.DetectISO(text); ok {
		return code
	}
	return fallback
}
