package registration_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi1475/School-ERPS-sub002/core/registration"
	"github.com/ravi1475/School-ERPS-sub002/tests"
)

func TestSteps(t *testing.T) {
	require.Len(t, registration.Steps, registration.LastStep)

	seen := make(map[string]int)
	for i, step := range registration.Steps {
		assert.Equal(t, i+1, step.Number)
		for _, path := range step.Checked {
			assert.True(t, registration.IsPath(path), path)
			if n, ok := seen[path]; ok {
				t.Errorf("%q checked on steps %d and %d", path, n, step.Number)
			}
			seen[path] = step.Number
		}
		for _, path := range step.Required {
			assert.Contains(t, step.Checked, path)
			assert.True(t, registration.IsRequired(path), path)
		}
	}
}

func TestStepFor(t *testing.T) {
	for _, n := range []int{0, 8, -1} {
		if _, err := registration.StepFor(n); errors.Cause(err) != registration.ErrInvalidStep {
			t.Errorf("StepFor(%d) error = %v, wantErr %v", n, err, registration.ErrInvalidStep)
		}
	}
	step, err := registration.StepFor(4)
	require.NoError(t, err)
	assert.Equal(t, "Address", step.Title)
}

func TestValidator_ValidateStep(t *testing.T) {
	testutil.FreezeTime(t)
	_, v := testutil.NewValidator()

	step1 := testutil.FillStep(t, registration.NewRecord(), 1)
	noAdmissionNo := step1
	noAdmissionNo.AdmissionNo = ""
	badPhone := step1
	badPhone.MobileNumber = "12345"
	badPhone.Email = "nope"
	// fields of other steps are never checked by step 1
	otherStepBad := step1
	otherStepBad.Address.PinCode = "1"

	tests := []struct {
		name string
		rec  registration.Record
		step int
		want registration.ErrorMap
	}{
		{
			name: "empty step 1",
			rec:  registration.NewRecord(),
			step: 1,
			want: registration.ErrorMap{
				"admissionNo":  "This field is required",
				"firstName":    "This field is required",
				"lastName":     "This field is required",
				"dateOfBirth":  "Date of Birth is required",
				"gender":       "This field is required",
				"mobileNumber": "This field is required",
			},
		},
		{name: "valid step 1", rec: step1, step: 1, want: registration.ErrorMap{}},
		{name: "missing admission no", rec: noAdmissionNo, step: 1, want: registration.ErrorMap{"admissionNo": "This field is required"}},
		{
			name: "bad formats", rec: badPhone, step: 1,
			want: registration.ErrorMap{
				"mobileNumber": "Please enter a valid 10-digit phone number",
				"email":        "Please enter a valid email address",
			},
		},
		{name: "other step fields ignored", rec: otherStepBad, step: 1, want: registration.ErrorMap{}},
		{name: "empty optional step", rec: registration.NewRecord(), step: 6, want: registration.ErrorMap{}},
		{name: "empty documents step", rec: registration.NewRecord(), step: 7, want: registration.ErrorMap{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ValidateStep(tt.rec, tt.step)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	if _, err := v.ValidateStep(step1, 9); errors.Cause(err) != registration.ErrInvalidStep {
		t.Errorf("ValidateStep(9) error = %v, wantErr %v", err, registration.ErrInvalidStep)
	}
}

func TestValidator_ValidateWholeForm(t *testing.T) {
	testutil.FreezeTime(t)
	_, v := testutil.NewValidator()

	assert.Empty(t, v.ValidateWholeForm(testutil.ValidRecord(t)))

	rec := testutil.ValidRecord(t)
	rec.Father.Name = ""
	rec.Other.IFSCCode = "bad"
	assert.Equal(t, registration.ErrorMap{
		"father.name":    "This field is required",
		"other.ifscCode": "Please enter a valid IFSC code (e.g. SBIN0001234)",
	}, v.ValidateWholeForm(rec))
}
