package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
)

var (
	// custom validation tags & texts
	notBlankTag  = "notblank"
	notBlankText = "this field cannot be blank"

	msisdnTag   = "msisdn_ke"
	msisdnText  = "enter a Safaricom number like 2547XXXXXXXX"
	msisdnRegex = regexp.MustCompile(`^254(7|1)\d{8}$`)

	// pwdtoosim=Name Email: the password must not resemble the named sibling fields
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to your name or email"
	pwdMaxSim      = .7

	requiredTag  = "required"
	requiredText = "this field is required"
)

// Validator validates form structs and reports translated field errors.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewValidator() *Validator {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)
	return &Validator{validate: validate, translator: translator}
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use form (then JSON) tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("form")
		if tag == "" {
			tag = fld.Tag.Get("json")
		}
		name := strings.SplitN(tag, ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText)

	_ = validate.RegisterValidation(msisdnTag, msisdnValidation)
	RegisterCustomTranslation(validate, translator, msisdnTag, msisdnText)

	_ = validate.RegisterValidation(pwdAttrSimTag, pwdAttrSimValidation)
	RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
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

// Struct validates s and converts validator errors into a *ValidationError.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return errors.Wrap(err, "validating struct")
	}
	flds := make([]FieldError, 0, len(vErrs))
	for _, fe := range vErrs {
		flds = append(flds, FieldError{Field: fe.Field(), Error: fe.Translate(v.translator)})
	}
	return NewValidationError(nil, flds...)
}

// Custom Global Validators

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

// msisdnValidation only allows Kenyan mobile numbers in international format.
func msisdnValidation(fl validator.FieldLevel) bool {
	return msisdnRegex.MatchString(fl.Field().String())
}

// pwdAttrSimValidation rejects a password too close to one of the user attributes named in the param.
// Emails are also compared by their local part.
func pwdAttrSimValidation(fl validator.FieldLevel) bool {
	pwd := strings.ToLower(fl.Field().String())
	if pwd == "" {
		return true
	}
	parent := reflect.Indirect(fl.Parent())
	for _, name := range strings.Fields(fl.Param()) {
		attr := parent.FieldByName(name)
		if !attr.IsValid() || attr.Kind() != reflect.String {
			continue
		}
		val := strings.ToLower(attr.String())
		candidates := []string{val}
		if at := strings.LastIndexByte(val, '@'); at > 0 {
			candidates = append(candidates, val[:at])
		}
		for _, c := range candidates {
			if similarity(pwd, c) >= pwdMaxSim {
				return false
			}
		}
	}
	return true
}

func similarity(pwd, attr string) float64 {
	if attr == "" {
		return 0
	}
	return difflib.NewMatcher(strings.Split(pwd, ""), strings.Split(attr, "")).QuickRatio()
}
