package registration_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi1475/School-ERPS-sub002/core/registration"
)

func TestSetGet_roundTrip(t *testing.T) {
	doc := &registration.Document{Key: "drafts/1/studentImage/x", Name: "asha.png", ContentType: "image/png", Size: 3}

	for _, path := range registration.Paths() {
		t.Run(path, func(t *testing.T) {
			orig, _ := registration.Get(registration.NewRecord(), path)

			var want interface{}
			switch orig.(type) {
			case string:
				want = "value of " + path
			case bool:
				want = true
			case *registration.Document:
				want = doc
			default:
				t.Fatalf("unexpected value type %T", orig)
			}

			rec, err := registration.Set(registration.NewRecord(), path, want)
			require.NoError(t, err)
			got, ok := registration.Get(rec, path)
			if !ok {
				t.Fatalf("Get(%q) not found", path)
			}
			if got != want {
				t.Errorf("Get(Set(%q, %v)) = %v", path, want, got)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	paths := registration.Paths()

	for _, path := range []string{
		"admissionNo", "age", "father.name", "mother.aadhaarNo", "address.sameAsPresentAddress",
		"lastEducation.tcDate", "other.ifscCode", "documents.studentImage", "documents.medicalCertificate",
	} {
		assert.Contains(t, paths, path)
		assert.True(t, registration.IsPath(path), path)
	}
	assert.False(t, registration.IsPath("father"), "groups are not leaves")
	assert.False(t, registration.IsPath("father.nickname"))
	assert.Len(t, registration.DocumentSlots(), 15)
}

func TestSet(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		value   interface{}
		want    interface{}
		wantErr error
	}{
		{name: "text", path: "father.name", value: "Ravi", want: "Ravi"},
		{name: "enum", path: "gender", value: "male", want: "male"},
		{name: "nil clears text", path: "firstName", value: nil, want: ""},
		{name: "flag from bool", path: "address.sameAsPresentAddress", value: true, want: true},
		{name: "flag from string", path: "address.sameAsPresentAddress", value: "true", want: true},
		{name: "flag from empty string", path: "address.sameAsPresentAddress", value: "", want: false},
		{name: "unknown path", path: "father.nickname", value: "x", wantErr: registration.ErrUnknownPath},
		{name: "group path", path: "father", value: "x", wantErr: registration.ErrUnknownPath},
		{name: "number for text", path: "firstName", value: 12, wantErr: registration.ErrInvalidValue},
		{name: "garbage flag", path: "address.sameAsPresentAddress", value: "maybe", wantErr: registration.ErrInvalidValue},
		{name: "text for document", path: "documents.studentImage", value: "a.png", wantErr: registration.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := registration.Set(registration.NewRecord(), tt.path, tt.value)
			if tt.wantErr != nil {
				if errors.Cause(err) != tt.wantErr {
					t.Errorf("Set() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			got, _ := registration.Get(rec, tt.path)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSet_leavesRecordUntouched(t *testing.T) {
	rec := registration.NewRecord()
	rec.Father.Name = "Ravi"

	updated, err := registration.Set(rec, "father.name", "Mohan")
	require.NoError(t, err)

	assert.Equal(t, "Ravi", rec.Father.Name)
	assert.Equal(t, "Mohan", updated.Father.Name)
}

func TestDisplay(t *testing.T) {
	rec := registration.NewRecord()
	rec.Mother.Name = "Sita"
	rec.Address.SameAsPresentAddress = true
	rec.Documents.BirthCertificate = &registration.Document{Name: "birth.pdf"}

	tests := []struct {
		path string
		want string
	}{
		{path: "mother.name", want: "Sita"},
		{path: "mother.email", want: ""},
		{path: "address.sameAsPresentAddress", want: "true"},
		{path: "documents.birthCertificate", want: "birth.pdf"},
		{path: "documents.markSheet", want: ""},
		{path: "nope", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := registration.Display(rec, tt.path); got != tt.want {
				t.Errorf("Display() = %q, want %q", got, tt.want)
			}
		})
	}
}
