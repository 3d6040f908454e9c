package registration

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/ravi1475/School-ERPS-sub002/core"
)

type Status string

const (
	StatusEditing    Status = "editing"
	StatusSubmitting Status = "submitting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// State is a snapshot of a registration wizard.
type State struct {
	Step    int      `json:"step"`
	Status  Status   `json:"status"`
	Failure string   `json:"failure,omitempty"`
	Record  Record   `json:"record"`
	Errors  ErrorMap `json:"errors"`
}

// NewState returns the state of a fresh registration.
func NewState() State {
	return State{
		Step:   FirstStep,
		Status: StatusEditing,
		Record: NewRecord(),
		Errors: make(ErrorMap),
	}
}

func (s State) clone() State {
	s.Errors = s.Errors.clone()
	return s
}

// Submitter sends a registration payload to the persistence backend.
// Rejections should be reported as *SubmissionError.
type Submitter interface {
	Submit(ctx context.Context, payload Payload) error
}

// Machine drives one registration through the wizard steps and its submission.
type Machine struct {
	mu        sync.Mutex
	state     State
	validator *Validator
	assembler *Assembler
	submitter Submitter
}

// NewMachine returns a Machine resuming from state, or from NewState if none is given.
func NewMachine(v *Validator, a *Assembler, s Submitter, state ...State) *Machine {
	st := NewState()
	if len(state) > 0 {
		st = state[0].clone()
		if st.Errors == nil {
			st.Errors = make(ErrorMap)
		}
	}
	return &Machine{state: st, validator: v, assembler: a, submitter: s}
}

// State returns a snapshot of the machine.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *Machine) Step() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Step
}

func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Status
}

func (m *Machine) Record() Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Record
}

func (m *Machine) Errors() ErrorMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Errors.clone()
}

// edit is called with the lock held before any change to the wizard.
func (m *Machine) edit() error {
	switch m.state.Status {
	case StatusSubmitting:
		return ErrSubmissionInProgress
	case StatusFailed, StatusSucceeded:
		m.state.Status = StatusEditing
		m.state.Failure = ""
	}
	return nil
}

// EditField writes value at path, clears the error of path and recomputes the fields derived from it.
func (m *Machine) EditField(path string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if derivedPaths[path] {
		return errors.Wrapf(ErrDerivedField, "%q", path)
	}
	if isDocumentPath(path) {
		return errors.Wrapf(ErrUnknownPath, "%q", path)
	}
	rec, err := Set(m.state.Record, path, value)
	if err != nil {
		return err
	}
	if err = m.edit(); err != nil {
		return err
	}
	m.state.Record = applyDerived(rec, path)
	delete(m.state.Errors, path)
	return nil
}

// EditFile puts doc in slot (nil empties it) and returns the document it replaced.
func (m *Machine) EditFile(slot string, doc *Document) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := documentsGroup + "." + slot
	if !IsDocumentSlot(slot) {
		return nil, errors.Wrapf(ErrUnknownSlot, "%q", slot)
	}
	if err := m.edit(); err != nil {
		return nil, err
	}
	prev, _ := Get(m.state.Record, path)
	rec, err := Set(m.state.Record, path, doc)
	if err != nil {
		return nil, err
	}
	m.state.Record = rec
	prevDoc, _ := prev.(*Document)
	return prevDoc, nil
}

// AdvanceStep moves to the next step when the current one is valid and reports whether it was.
// Otherwise the step errors are kept and the step does not change.
func (m *Machine) AdvanceStep() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.edit(); err != nil {
		return false, err
	}
	errs, err := m.validator.ValidateStep(m.state.Record, m.state.Step)
	if err != nil {
		return false, err
	}
	if len(errs) > 0 {
		m.state.Errors = errs
		return false, nil
	}
	if m.state.Step < LastStep {
		m.state.Step++
	}
	m.state.Errors = make(ErrorMap)
	return true, nil
}

// RetreatStep moves to the previous step and clears the errors without validating.
func (m *Machine) RetreatStep() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.edit(); err != nil {
		return err
	}
	if m.state.Step > FirstStep {
		m.state.Step--
	}
	m.state.Errors = make(ErrorMap)
	return nil
}

// BeginSubmit validates the whole form and, when valid, enters the submitting status and
// returns the payload to send. Invalid forms stay in editing with the errors recorded.
func (m *Machine) BeginSubmit() (Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Status == StatusSubmitting {
		return Payload{}, ErrSubmissionInProgress
	}
	m.state.Failure = ""

	if errs := m.validator.ValidateWholeForm(m.state.Record); len(errs) > 0 {
		m.state.Status = StatusEditing
		m.state.Errors = errs
		return Payload{}, core.NewValidationError(ErrFormIncomplete, errs.Fields()...)
	}

	m.state.Status = StatusSubmitting
	m.state.Errors = make(ErrorMap)
	return m.assembler.Build(m.state.Record), nil
}

// CompleteSubmit settles the submission: on success the wizard starts over with a fresh record,
// on failure the record and step are kept and the failure message is recorded.
func (m *Machine) CompleteSubmit(submitErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Status != StatusSubmitting {
		return ErrNotSubmitting
	}
	if submitErr == nil {
		m.state = NewState()
		m.state.Status = StatusSucceeded
		return nil
	}
	m.state.Status = StatusFailed
	m.state.Failure = FailureMessage(submitErr)
	return nil
}

// Submit validates the form and sends it with the Submitter.
// A second call while a submission is outstanding returns ErrSubmissionInProgress.
func (m *Machine) Submit(ctx context.Context) error {
	payload, err := m.BeginSubmit()
	if err != nil {
		return err
	}

	submitErr := m.submitter.Submit(ctx, payload)
	if err = m.CompleteSubmit(submitErr); err != nil {
		return err
	}
	return errors.Wrap(submitErr, "submitting registration")
}

// IsDocumentSlot reports whether slot names a document of Record.
func IsDocumentSlot(slot string) bool {
	return slot != "" && IsPath(documentsGroup+"."+slot)
}

// DocumentSlots lists the document slot names in declaration order.
func DocumentSlots() []string {
	slots := make([]string, 0)
	for _, p := range leafPaths {
		if isDocumentPath(p) {
			slots = append(slots, p[len(documentsGroup)+1:])
		}
	}
	return slots
}
