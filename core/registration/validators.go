package registration

import (
	"regexp"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ravi1475/School-ERPS-sub002/core"
)

var (
	NowFunc = time.Now // mockable

	dateLayouts = []string{"2006-01-02", time.RFC3339}

	requiredText    = "This field is required"
	dobRequiredText = "Date of Birth is required"

	// custom validation tags & texts
	dateTag  = "regdate"
	dateText = "Please enter a valid date"

	notFutureTag  = "dobnotfuture"
	notFutureText = "Date of Birth cannot be in the future"

	withinCenturyTag  = "dobwithincentury"
	withinCenturyText = "Date of Birth cannot be more than 100 years ago"

	emailTag   = "regemail"
	emailText  = "Please enter a valid email address"
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	phoneTag   = "phone10"
	phoneText  = "Please enter a valid 10-digit phone number"
	phoneRegex = regexp.MustCompile(`^\d{10}$`)

	aadhaarTag   = "aadhaar"
	aadhaarText  = "Please enter a valid 12-digit Aadhaar number"
	aadhaarRegex = regexp.MustCompile(`^\d{12}$`)

	pinCodeTag   = "pincode"
	pinCodeText  = "Please enter a valid 6-digit pincode"
	pinCodeRegex = regexp.MustCompile(`^\d{6}$`)

	bankAccountTag   = "bankacct"
	bankAccountText  = "Please enter a valid bank account number (9-18 digits)"
	bankAccountRegex = regexp.MustCompile(`^\d{9,18}$`)

	ifscTag   = "ifsc"
	ifscText  = "Please enter a valid IFSC code (e.g. SBIN0001234)"
	ifscRegex = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)

	genderTag        = "reggender"
	bloodGroupTag    = "regbloodgroup"
	transportModeTag = "regtransport"
	optionText       = "Please select a valid option"
)

type fieldRule struct {
	tag          string
	requiredText string // overrides requiredText for this field
}

var (
	dobRule   = fieldRule{tag: dateTag + "," + notFutureTag + "," + withinCenturyTag, requiredText: dobRequiredText}
	dateRule  = fieldRule{tag: dateTag}
	emailRule = fieldRule{tag: emailTag}
	phoneRule = fieldRule{tag: phoneTag}
	uidRule   = fieldRule{tag: aadhaarTag}

	// fieldRules holds the format rule of every field that has one.
	// Fields without a rule accept any non-empty value.
	fieldRules = map[string]fieldRule{
		dobPath:         dobRule,
		"admissionDate": dateRule,
		"gender":        {tag: genderTag},
		"bloodGroup":    {tag: bloodGroupTag},
		"mobileNumber":  phoneRule,
		"email":         emailRule,
		"aadhaarNumber": uidRule,

		"transport.mode":  {tag: transportModeTag},
		"address.pinCode": {tag: pinCodeTag},

		"father.email":           emailRule,
		"father.contactNumber":   phoneRule,
		"father.aadhaarNo":       uidRule,
		"mother.email":           emailRule,
		"mother.contactNumber":   phoneRule,
		"mother.aadhaarNo":       uidRule,
		"guardian.contactNumber": phoneRule,

		"lastEducation.tcDate": dateRule,

		"other.accountNo": {tag: bankAccountTag},
		"other.ifscCode":  {tag: ifscTag},
	}
)

// InitValidators registers the registration field rules on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	register := func(tag, text string, fn validator.Func) {
		_ = validate.RegisterValidation(tag, fn)
		core.RegisterCustomTranslation(validate, translator, tag, text)
	}

	register(dateTag, dateText, dateValidation)
	register(notFutureTag, notFutureText, notFutureValidation)
	register(withinCenturyTag, withinCenturyText, withinCenturyValidation)
	register(emailTag, emailText, regexValidation(emailRegex))
	register(phoneTag, phoneText, regexValidation(phoneRegex))
	register(aadhaarTag, aadhaarText, regexValidation(aadhaarRegex))
	register(pinCodeTag, pinCodeText, regexValidation(pinCodeRegex))
	register(bankAccountTag, bankAccountText, regexValidation(bankAccountRegex))
	register(ifscTag, ifscText, regexValidation(ifscRegex))
	register(genderTag, optionText, optionValidation(Genders))
	register(bloodGroupTag, optionText, optionValidation(BloodGroups))
	register(transportModeTag, optionText, optionValidation(TransportModes))
}

// ruleFor returns the format rule of path. Any "*tcDate" field is a date.
func ruleFor(path string) (fieldRule, bool) {
	if rule, ok := fieldRules[path]; ok {
		return rule, true
	}
	leaf := path[strings.LastIndex(path, ".")+1:]
	if strings.HasSuffix(leaf, "tcDate") || strings.HasSuffix(leaf, "TcDate") {
		return dateRule, true
	}
	return fieldRule{}, false
}

// HasRule reports whether path has a format rule.
func HasRule(path string) bool {
	_, ok := ruleFor(path)
	return ok
}

// UnruledPaths lists the text fields accepted without any format check.
func UnruledPaths() []string {
	paths := make([]string, 0, len(leafPaths))
	for _, p := range leafPaths {
		if isDocumentPath(p) || p == mirrorFlagPath || p == agePath || HasRule(p) {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

func requiredMessage(path string) string {
	if rule, ok := ruleFor(path); ok && rule.requiredText != "" {
		return rule.requiredText
	}
	return requiredText
}

// Validator checks field values and steps of a Record.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator returns a Validator; validate must have been set up with InitValidators.
func NewValidator(validate *validator.Validate, translator ut.Translator) *Validator {
	return &Validator{validate: validate, translator: translator}
}

// ValidateField returns the validation message of value for path, or "" when valid.
// Paths without a format rule accept any non-empty value.
func (v *Validator) ValidateField(path, value string) string {
	rule, hasRule := ruleFor(path)
	if strings.TrimSpace(value) == "" {
		if !IsRequired(path) {
			return ""
		}
		return requiredMessage(path)
	}
	if !hasRule {
		return ""
	}

	err := v.validate.Var(value, rule.tag)
	if err == nil {
		return ""
	}
	if vErrs, ok := err.(validator.ValidationErrors); ok && len(vErrs) > 0 {
		return vErrs[0].Translate(v.translator)
	}
	return err.Error()
}

// Custom Validators

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func today() time.Time {
	now := NowFunc()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func dateValidation(fl validator.FieldLevel) bool {
	_, ok := parseDate(fl.Field().String())
	return ok
}

func notFutureValidation(fl validator.FieldLevel) bool {
	d, ok := parseDate(fl.Field().String())
	return !ok || !d.After(today())
}

func withinCenturyValidation(fl validator.FieldLevel) bool {
	d, ok := parseDate(fl.Field().String())
	return !ok || !d.Before(today().AddDate(-100, 0, 0))
}

func regexValidation(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

func optionValidation[T ~string](options []T) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, opt := range options {
			if string(opt) == val {
				return true
			}
		}
		return false
	}
}
