// Package testutil holds the fixtures shared by the package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ravi1475/School-ERPS-sub002/core"
	"github.com/ravi1475/School-ERPS-sub002/core/registration"
)

// Today is the date tests pin registration.NowFunc to.
var Today = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

// FreezeTime pins registration.NowFunc to Today for the duration of the test.
func FreezeTime(t *testing.T) {
	t.Helper()
	registration.NowFunc = func() time.Time { return Today }
	t.Cleanup(func() { registration.NowFunc = time.Now })
}

// ValidFields returns, per step, values that make the step valid.
func ValidFields() map[int]map[string]interface{} {
	return map[int]map[string]interface{}{
		1: {
			"admissionNo":   "ADM-2024-001",
			"admissionDate": "2024-06-01",
			"firstName":     "Asha",
			"lastName":      "Verma",
			"dateOfBirth":   "2015-03-20",
			"gender":        "female",
			"bloodGroup":    "B+",
			"mobileNumber":  "9876543210",
			"email":         "asha.verma@example.com",
			"aadhaarNumber": "123412341234",
		},
		2: {
			"admitSession.class":     "3",
			"currentSession.class":   "4",
			"currentSession.section": "A",
		},
		3: {
			"transport.mode": "school_bus",
		},
		4: {
			"address.houseNo":    "12",
			"address.streetName": "MG Road",
			"address.city":       "Jaipur",
			"address.state":      "Rajasthan",
			"address.pinCode":    "302001",
		},
		5: {
			"father.name":          "Ravi Verma",
			"father.contactNumber": "9876500001",
			"father.email":         "ravi.verma@example.com",
			"mother.name":          "Sita Verma",
			"mother.email":         "sita.verma@example.com",
		},
		6: {
			"lastEducation.schoolName": "Little Stars",
			"lastEducation.tcDate":     "2024-04-30",
		},
		7: {
			"other.accountNo": "123456789012",
			"other.ifscCode":  "SBIN0001234",
		},
	}
}

// ValidRecord returns a record that passes every step. Derived fields are left unset.
func ValidRecord(t *testing.T) registration.Record {
	t.Helper()
	rec := registration.NewRecord()
	for n := registration.FirstStep; n <= registration.LastStep; n++ {
		rec = FillStep(t, rec, n)
	}
	return rec
}

// FillStep writes the valid values of step n into rec.
func FillStep(t *testing.T, rec registration.Record, n int) registration.Record {
	t.Helper()
	for path, value := range ValidFields()[n] {
		var err error
		if rec, err = registration.Set(rec, path, value); err != nil {
			t.Fatalf("FillStep() failed: %v", err)
		}
	}
	return rec
}

// NewValidate returns a validator and its translator with every rule registered.
func NewValidate() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	registration.InitValidators(validate, translator)
	return validate, translator
}

// NewValidator returns a registration validator with every rule registered.
func NewValidator() (*validator.Validate, *registration.Validator) {
	validate, translator := NewValidate()
	return validate, registration.NewValidator(validate, translator)
}

// NewConfig returns the config used by tests.
func NewConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		AppName:          "School ERP",
		TestMode:         true,
		SecretKey:        "secret",
		DefaultFromEmail: "School ERP <noreply@test.local>",
		Server: core.ServerConfig{
			ShutdownTimeout: time.Second,
		},
		StudentAPI: core.StudentAPIConfig{
			BaseURL: "http://student-api.test",
			Timeout: 5 * time.Second,
		},
		Registration: core.RegistrationConfig{
			DraftStore:      "memory",
			PartnerField:    "partnerId",
			PartnerID:       "42",
			MaxDocumentSize: 1 << 10,
			SubmitTimeout:   time.Minute,
		},
	}
}

// Submitter is a registration.Submitter recording the payloads it receives.
// Err is returned by every call; Hold, when set, blocks calls until it is closed.
// Done, when set, runs just before a call returns.
type Submitter struct {
	mu       sync.Mutex
	Err      error
	Hold     chan struct{}
	Started  chan struct{}
	Done     func()
	payloads []registration.Payload
}

func (s *Submitter) Submit(ctx context.Context, payload registration.Payload) error {
	s.mu.Lock()
	s.payloads = append(s.payloads, payload)
	hold, started, done, err := s.Hold, s.Started, s.Done, s.Err
	s.mu.Unlock()

	if done != nil {
		defer done()
	}
	if started != nil {
		started <- struct{}{}
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *Submitter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func (s *Submitter) Payloads() []registration.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]registration.Payload, len(s.payloads))
	copy(out, s.payloads)
	return out
}

// Logger is a core.Logger keeping the logged messages by level.
type Logger struct {
	mu   sync.Mutex
	logs map[string][]string
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger {
	return &Logger{logs: make(map[string][]string)}
}

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(args) > 0 {
		msg = fmt.Sprintf("%s %v", msg, args)
	}
	l.logs[level] = append(l.logs[level], msg)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

// Logs returns the messages logged at level.
func (l *Logger) Logs(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.logs[level]))
	copy(out, l.logs[level])
	return out
}
