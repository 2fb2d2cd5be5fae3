package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"
)

const (
	// MoneyPlaces is the number of decimal places kept for amounts.
	MoneyPlaces = 2
	// MaxAmount is the largest amount a NUMERIC(12,2) column holds.
	MaxAmount = "9999999999.99"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "only alphanumeric characters and underscores are allowed"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	notBlankTag  = "notblank"
	notBlankText = "this field may not be blank"

	moneyTag  = "money"
	moneyText = "ensure that there are no more than 2 decimal places"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"

	// decimal comparisons; the param is a decimal literal
	decGtTag   = "decgt"
	decGtText  = "ensure this value is greater than {1}"
	decGteTag  = "decgte"
	decGteText = "ensure this value is greater than or equal to {1}"
	decLteTag  = "declte"
	decLteText = "ensure this value is less than or equal to {1}"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// decimals reach validators as their exact string form, never as floats
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText)

	_ = validate.RegisterValidation(moneyTag, moneyValidation)
	RegisterCustomTranslation(validate, translator, moneyTag, moneyText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)

	decimalTags := []struct {
		tag, text string
		fn        func(cmp int) bool
	}{
		{tag: decGtTag, text: decGtText, fn: func(cmp int) bool { return cmp > 0 }},
		{tag: decGteTag, text: decGteText, fn: func(cmp int) bool { return cmp >= 0 }},
		{tag: decLteTag, text: decLteText, fn: func(cmp int) bool { return cmp <= 0 }},
	}
	for _, dt := range decimalTags {
		_ = validate.RegisterValidation(dt.tag, decimalValidation(dt.fn))
		registerParamTranslation(validate, translator, dt.tag, dt.text)
	}
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func registerParamTranslation(validate *validator.Validate, translator ut.Translator, tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field(), fe.Param())
			return s
		},
	)
}

// NewTranslator returns the English translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidator returns a validator with the app's custom tags and English translations.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	InitValidators(validate, translator)
	return validate
}

// TranslateValidationErrors converts validator errors into a *ValidationError.
func TranslateValidationErrors(err error, translator ut.Translator) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Error: fe.Translate(translator)})
	}
	return NewValidationError(nil, fields...)
}

// Custom Global Validators

func decimalValue(v reflect.Value) interface{} {
	if d, ok := v.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

// fieldDecimal reads a decimal field, as exposed by decimalValue, or a numeric string field.
func fieldDecimal(fl validator.FieldLevel) (decimal.Decimal, bool) {
	if fl.Field().Kind() != reflect.String {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(fl.Field().String())
	return d, err == nil
}

// decimalValidation compares the field with the tag's param, e.g. decgt=0 or declte=100.50.
func decimalValidation(ok func(cmp int) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, valid := fieldDecimal(fl)
		if !valid {
			return false
		}
		param := decimal.RequireFromString(fl.Param()) // panics on a bad tag, like the builtin tags
		return ok(d.Cmp(param))
	}
}

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// moneyValidation rejects amounts with more than 2 decimal places.
func moneyValidation(fl validator.FieldLevel) bool {
	d, ok := fieldDecimal(fl)
	return ok && IsMoney(d)
}

// IsMoney reports whether d has at most MoneyPlaces decimal places.
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyPlaces))
}
