// Package validator checks that a provider's output is in the language it
// was asked for.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/valpere/dzerkalo/internal/detector"
)

// minValidationLength is the minimum rune count required to attempt language detection.
// Shorter texts produce unreliable results and are accepted without validation.
const minValidationLength = 20

var ErrEmptyOutput = errors.New("output is empty")

// WrongLanguageError reports output detected in an unexpected language.
type WrongLanguageError struct {
	Expected string
	Detected string
}

func (e *WrongLanguageError) Error() string {
	return fmt.Sprintf("expected %s but detected %s", e.Expected, e.Detected)
}

// Validator checks that a translation result is written in the expected target language.
// The underlying language detector is expensive to build; reuse the instance.
type Validator struct {
	det *detector.Detector
}

func New(det *detector.Detector) *Validator {
	if det == nil {
		det = detector.New()
	}
	return &Validator{det: det}
}

// Check returns nil when text appears to be written in lang.
//
// Short texts and texts whose language cannot be determined pass. Region
// subtags are ignored, so "zh-CN" accepts Chinese.
func (v *Validator) Check(text, lang string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyOutput
	}
	if lang == "" || lang == "auto" {
		return nil
	}

	if len([]rune(text)) < minValidationLength {
		return nil
	}

	detected, ok := v.det.DetectISO(text)
	if !ok {
		return nil
	}

	want := strings.ToLower(lang)
	if i := strings.IndexAny(want, "-_"); i > 0 {
		want = want[:i]
	}
	if detected != want {
		return &WrongLanguageError{Expected: want, Detected: detected}
	}
	return nil
}
