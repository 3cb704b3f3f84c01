package validator

import (
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// Custom validation tags
const (
	TagNotBlank  = "notblank"  // Non-empty after trimming whitespace
	TagTrimmed   = "trimmed"   // No leading/trailing whitespace
	TagNoControl = "nocontrol" // No control characters (identifiers, keys)
)

var customTranslations = map[string]map[string]string{
	LangEN: {
		TagNotBlank:  "{0} must not be blank",
		TagTrimmed:   "{0} must not have leading or trailing spaces",
		TagNoControl: "{0} must not contain control characters",
	},
	LangZH: {
		TagNotBlank:  "{0}不能为空白",
		TagTrimmed:   "{0}不能有前导或尾随空格",
		TagNoControl: "{0}不能包含控制字符",
	},
}

func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation(TagNotBlank, validateNotBlank)
	_ = v.validate.RegisterValidation(TagTrimmed, validateTrimmed)
	_ = v.validate.RegisterValidation(TagNoControl, validateNoControl)

	for lang, messages := range customTranslations {
		trans := v.trans[lang]
		if trans == nil {
			continue
		}
		for tag, message := range messages {
			registerTranslation(v.validate, trans, tag, message)
		}
	}
}

func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, message string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}

// validateNotBlank rejects empty and whitespace-only strings.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateTrimmed(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return value == strings.TrimSpace(value)
}

func validateNoControl(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
