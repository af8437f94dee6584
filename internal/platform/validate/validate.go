// Package validate runs struct tag validation on request payloads and
// renders English messages keyed by JSON field names.
package validate

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"
)

const (
	notBlankTag = "notblank"
	nonNegTag   = "nonneg"
	positiveTag = "positive"
	percentTag  = "percent"
	fractionTag = "fraction"
)

var hundred = decimal.NewFromInt(100)

type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	locale := en.New()
	uni := ut.New(locale, locale)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlank)
	_ = validate.RegisterValidation(nonNegTag, decimalCompare(func(d decimal.Decimal) bool { return !d.IsNegative() }))
	_ = validate.RegisterValidation(positiveTag, decimalCompare(func(d decimal.Decimal) bool { return d.IsPositive() }))
	// percent is 0 to 100, fraction is 0 to 1.
	_ = validate.RegisterValidation(percentTag, decimalCompare(func(d decimal.Decimal) bool {
		return !d.IsNegative() && d.LessThanOrEqual(hundred)
	}))
	_ = validate.RegisterValidation(fractionTag, decimalCompare(func(d decimal.Decimal) bool {
		return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(1))
	}))

	noop := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, nonNegTag, positiveTag, percentTag, fractionTag} {
		_ = validate.RegisterTranslation(tag, translator, noop, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fe.Field() + " cannot be blank"
	case nonNegTag:
		return fe.Field() + " must not be negative"
	case positiveTag:
		return fe.Field() + " must be greater than zero"
	case percentTag:
		return fe.Field() + " must be a percentage between 0 and 100"
	case fractionTag:
		return fe.Field() + " must be a fraction between 0 and 1"
	default:
		return fe.Field() + " is invalid"
	}
}

func notBlank(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return false
}

func decimalCompare(ok func(decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		switch v := fl.Field().Interface().(type) {
		case decimal.Decimal:
			return ok(v)
		case *decimal.Decimal:
			return v == nil || ok(*v)
		default:
			return false
		}
	}
}

// Struct validates s and returns one issue per failing field, sorted by field.
// Nested fields use dotted JSON paths without the root struct name.
func Struct(s any) []Issue {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Field: "", Reason: err.Error()}}
	}
	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, Issue{Field: fieldPath(fe.Namespace()), Reason: fe.Translate(translator)})
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Field < issues[j].Field })
	return issues
}

func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}
