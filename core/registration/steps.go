package registration

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	FirstStep = 1
	LastStep  = 7
)

// Step is one page of the registration wizard.
// Checked lists the fields format-checked on the step; it includes the required ones.
type Step struct {
	Number   int      `json:"number"`
	Title    string   `json:"title"`
	Required []string `json:"required"`
	Checked  []string `json:"checked"`
}

// Steps is the wizard table. A path belongs to at most one step.
var Steps = []Step{
	{
		Number:   1,
		Title:    "Basic Information",
		Required: []string{"admissionNo", "firstName", "lastName", dobPath, "gender", "mobileNumber"},
		Checked: []string{
			"admissionNo", "admissionDate", "firstName", "lastName", dobPath, "gender", "bloodGroup",
			"mobileNumber", "email", "aadhaarNumber",
		},
	},
	{
		Number:   2,
		Title:    "Academic Details",
		Required: []string{"admitSession.class", "currentSession.class", "currentSession.section"},
		Checked: []string{
			"admitSession.class", "currentSession.class", "currentSession.section", "academic.registrationNo",
		},
	},
	{
		Number:   3,
		Title:    "Transport",
		Required: []string{"transport.mode"},
		Checked:  []string{"transport.mode"},
	},
	{
		Number:   4,
		Title:    "Address",
		Required: []string{"address.houseNo", "address.city", "address.state", "address.pinCode"},
		Checked:  []string{"address.houseNo", "address.city", "address.state", "address.pinCode"},
	},
	{
		Number:   5,
		Title:    "Parents & Guardian",
		Required: []string{"father.name", "father.contactNumber", "mother.name"},
		Checked: []string{
			"father.name", "father.contactNumber", "father.email", "father.aadhaarNo",
			"mother.name", "mother.contactNumber", "mother.email", "mother.aadhaarNo",
			"guardian.contactNumber",
		},
	},
	{
		Number:  6,
		Title:   "Last Education",
		Checked: []string{"lastEducation.schoolName", "lastEducation.tcDate"},
	},
	{
		Number:  7,
		Title:   "Other Details & Documents",
		Checked: []string{"other.accountNo", "other.ifscCode"},
	},
}

var requiredPaths = func() map[string]bool {
	paths := make(map[string]bool)
	for _, st := range Steps {
		for _, p := range st.Required {
			paths[p] = true
		}
	}
	return paths
}()

// IsRequired reports whether path is required on its step.
func IsRequired(path string) bool {
	return requiredPaths[path]
}

// StepFor returns the step numbered n.
func StepFor(n int) (Step, error) {
	if n < FirstStep || n > LastStep {
		return Step{}, errors.Wrapf(ErrInvalidStep, "%d", n)
	}
	return Steps[n-1], nil
}

func isEmpty(rec Record, path string) bool {
	value, ok := Get(rec, path)
	if !ok {
		return true
	}
	switch val := value.(type) {
	case string:
		return strings.TrimSpace(val) == ""
	case *Document:
		return val == nil
	case nil:
		return true
	}
	return false
}

// ValidateStep checks the required and format-checked fields of step n.
// Fields not listed on the step are never checked by it.
func (v *Validator) ValidateStep(rec Record, n int) (ErrorMap, error) {
	st, err := StepFor(n)
	if err != nil {
		return nil, err
	}

	errs := make(ErrorMap)
	for _, p := range st.Required {
		if isEmpty(rec, p) {
			errs[p] = requiredMessage(p)
		}
	}
	for _, p := range st.Checked {
		if _, missing := errs[p]; missing {
			continue
		}
		if msg := v.ValidateField(p, Display(rec, p)); msg != "" {
			errs[p] = msg
		}
	}
	return errs, nil
}

// ValidateWholeForm checks every step; the first step reporting a path wins.
func (v *Validator) ValidateWholeForm(rec Record) ErrorMap {
	all := make(ErrorMap)
	for n := FirstStep; n <= LastStep; n++ {
		errs, _ := v.ValidateStep(rec, n)
		for p, msg := range errs {
			if _, ok := all[p]; !ok {
				all[p] = msg
			}
		}
	}
	return all
}
