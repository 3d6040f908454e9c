package registration

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"path"
	"sync"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/ravi1475/School-ERPS-sub002/core"
)

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomeInvalid   = "invalid"

	registrationReceivedTmpl = "registration_received"
)

var allowedDocumentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

type (
	ServiceDeps struct {
		Repo       Repository
		Blobs      core.BlobStore
		Submitter  Submitter
		MailSvc    core.EmailService
		Logger     core.Logger
		Metrics    *Metrics
		Validate   *validator.Validate
		Translator ut.Translator
		Conf       *core.Config
	}

	// Service runs registration drafts through the wizard, one caller per draft at a time.
	Service struct {
		repo      Repository
		blobs     core.BlobStore
		submitter Submitter
		mailSvc   core.EmailService
		logger    core.Logger
		metrics   *Metrics
		validator *Validator
		assembler *Assembler

		maxDocumentSize int64
		submitTimeout   time.Duration

		locks draftLocks
	}
)

func NewService(deps ServiceDeps) (*Service, error) {
	err := vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Repo, "Repo"),
		vala.IsNotNil(deps.Blobs, "Blobs"),
		vala.IsNotNil(deps.Submitter, "Submitter"),
		vala.IsNotNil(deps.MailSvc, "MailSvc"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.Metrics, "Metrics"),
		vala.IsNotNil(deps.Validate, "Validate"),
		vala.IsNotNil(deps.Translator, "Translator"),
		vala.IsNotNil(deps.Conf, "Conf"),
	).Check()
	if err != nil {
		return nil, errors.Wrap(err, "checking service dependencies")
	}

	return &Service{
		repo:            deps.Repo,
		blobs:           deps.Blobs,
		submitter:       deps.Submitter,
		mailSvc:         deps.MailSvc,
		logger:          deps.Logger,
		metrics:         deps.Metrics,
		validator:       NewValidator(deps.Validate, deps.Translator),
		assembler:       NewAssembler(deps.Conf.Registration.PartnerField, deps.Conf.Registration.PartnerID),
		maxDocumentSize: deps.Conf.Registration.MaxDocumentSize,
		submitTimeout:   deps.Conf.Registration.SubmitTimeout,
		locks:           draftLocks{locks: make(map[string]*draftLock)},
	}, nil
}

func (svc *Service) machine(state State) *Machine {
	return NewMachine(svc.validator, svc.assembler, svc.submitter, state)
}

// Payload returns the payload a draft would be submitted with.
func (svc *Service) Payload(draft Draft) Payload {
	return svc.assembler.Build(draft.Record)
}

func (svc *Service) Start(ctx context.Context, createdBy string) (Draft, error) {
	now := NowFunc().UTC()
	draft := Draft{
		ID:        uuid.NewString(),
		State:     NewState(),
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	draft, err := svc.repo.CreateDraft(ctx, draft)
	if err != nil {
		return Draft{}, errors.Wrap(err, "creating draft")
	}
	svc.metrics.IncrementDraftsStarted()
	return draft, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Draft, error) {
	draft, err := svc.repo.GetDraftByID(ctx, id)
	if err != nil {
		return Draft{}, errors.Wrap(err, "getting draft")
	}
	return svc.expireSubmission(draft), nil
}

func (svc *Service) Query(ctx context.Context, filter DraftFilter, orderings []core.DBOrdering) ([]Draft, error) {
	drafts, err := svc.repo.QueryDrafts(ctx, filter, core.CleanOrderings(orderings, DraftOrderingFields))
	if err != nil {
		return nil, errors.Wrap(err, "querying drafts")
	}
	return drafts, nil
}

// expireSubmission fails a submission that has been outstanding for longer than the submit timeout.
func (svc *Service) expireSubmission(draft Draft) Draft {
	if draft.Status != StatusSubmitting || draft.SubmittingSince == nil {
		return draft
	}
	if NowFunc().Sub(*draft.SubmittingSince) <= svc.submitTimeout {
		return draft
	}
	draft.Status = StatusFailed
	draft.Failure = submissionTimeoutText
	draft.SubmittingSince = nil
	return draft
}

// update runs fn on the machine of draft id and saves the resulting state.
// Nothing is saved when fn fails.
func (svc *Service) update(ctx context.Context, id string, fn func(*Draft, *Machine) error) (Draft, error) {
	return svc.modify(ctx, id, true, fn)
}

// modify is update with the submission expiry optional. Only the caller that started a
// submission settles it without expiry.
func (svc *Service) modify(ctx context.Context, id string, expire bool, fn func(*Draft, *Machine) error) (Draft, error) {
	unlock := svc.locks.lock(id)
	defer unlock()

	draft, err := svc.repo.GetDraftByID(ctx, id)
	if err != nil {
		return Draft{}, errors.Wrap(err, "getting draft")
	}
	if expire {
		draft = svc.expireSubmission(draft)
	}

	m := svc.machine(draft.State)
	if err = fn(&draft, m); err != nil {
		return draft, err
	}
	draft.State = m.State()
	draft.UpdatedAt = NowFunc().UTC()

	draft, err = svc.repo.UpdateDraft(ctx, draft)
	if err != nil {
		return Draft{}, errors.Wrap(err, "updating draft")
	}
	return draft, nil
}

func (svc *Service) EditField(ctx context.Context, id, path string, value interface{}) (Draft, error) {
	return svc.update(ctx, id, func(_ *Draft, m *Machine) error {
		if err := m.EditField(path, value); err != nil {
			return fieldError(err, path)
		}
		return nil
	})
}

// Advance moves draft id to its next step. A blocked advance saves the step errors and
// returns a *core.ValidationError holding them.
func (svc *Service) Advance(ctx context.Context, id string) (Draft, error) {
	var stepErr error
	draft, err := svc.update(ctx, id, func(d *Draft, m *Machine) error {
		step := m.Step()
		advanced, err := m.AdvanceStep()
		if err != nil {
			return err
		}
		svc.metrics.IncrementStepAdvance(step, advanced)
		if !advanced {
			stepErr = core.NewValidationError(ErrStepIncomplete, m.Errors().Fields()...)
		}
		return nil
	})
	if err != nil {
		return draft, err
	}
	return draft, stepErr
}

func (svc *Service) Retreat(ctx context.Context, id string) (Draft, error) {
	return svc.update(ctx, id, func(_ *Draft, m *Machine) error {
		return m.RetreatStep()
	})
}

// UploadDocument stores the file read from r and puts it in slot, discarding the previous file.
// Files larger than the configured limit or not a JPEG, PNG or PDF are rejected.
func (svc *Service) UploadDocument(ctx context.Context, id, slot, filename string, r io.Reader) (Draft, error) {
	if !IsDocumentSlot(slot) {
		return Draft{}, errors.Wrapf(ErrUnknownSlot, "%q", slot)
	}
	field := documentsGroup + "." + slot

	data, err := io.ReadAll(io.LimitReader(r, svc.maxDocumentSize+1))
	if err != nil {
		return Draft{}, errors.Wrap(err, "reading document")
	}
	switch {
	case len(data) == 0:
		return Draft{}, core.NewValidationError(ErrDocumentEmpty, core.FieldError{Field: field, Error: ErrDocumentEmpty.Error()})
	case int64(len(data)) > svc.maxDocumentSize:
		msg := fmt.Sprintf("%s (max %d KiB)", ErrDocumentTooLarge, svc.maxDocumentSize>>10)
		return Draft{}, core.NewValidationError(ErrDocumentTooLarge, core.FieldError{Field: field, Error: msg})
	}
	contentType := http.DetectContentType(data)
	if !allowedDocumentTypes[contentType] {
		msg := fmt.Sprintf("%s (%s)", ErrDocumentType, contentType)
		return Draft{}, core.NewValidationError(ErrDocumentType, core.FieldError{Field: field, Error: msg})
	}

	var (
		prev   *Document
		stored string
	)
	draft, err := svc.update(ctx, id, func(d *Draft, m *Machine) error {
		if m.Status() == StatusSubmitting {
			return ErrSubmissionInProgress
		}
		sum := blake2b.Sum256(data)
		key := path.Join("drafts", d.ID, slot, uuid.NewString())
		info, err := svc.blobs.Put(ctx, key, bytes.NewReader(data), core.BlobPutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"filename": filename, "checksum": hex.EncodeToString(sum[:])},
		})
		if err != nil {
			return errors.Wrap(err, "storing document")
		}
		stored = info.Key
		doc := &Document{
			Key:         info.Key,
			Name:        filename,
			ContentType: contentType,
			Size:        int64(len(data)),
			Checksum:    hex.EncodeToString(sum[:]),
			UploadedAt:  NowFunc().UTC(),
		}
		prev, err = m.EditFile(slot, doc)
		return err
	})
	if err != nil {
		if stored != "" {
			svc.deleteBlob(context.WithoutCancel(ctx), stored)
		}
		return draft, err
	}
	svc.metrics.IncrementDocumentsUploaded()
	if prev != nil {
		svc.deleteBlob(ctx, prev.Key)
	}
	return draft, nil
}

func (svc *Service) RemoveDocument(ctx context.Context, id, slot string) (Draft, error) {
	var prev *Document
	draft, err := svc.update(ctx, id, func(_ *Draft, m *Machine) error {
		var err error
		prev, err = m.EditFile(slot, nil)
		return err
	})
	if err != nil {
		return draft, err
	}
	if prev != nil {
		svc.deleteBlob(ctx, prev.Key)
	}
	return draft, nil
}

// OpenDocument returns the document in slot and its content; callers must close the reader.
func (svc *Service) OpenDocument(ctx context.Context, id, slot string) (Document, io.ReadCloser, error) {
	if !IsDocumentSlot(slot) {
		return Document{}, nil, errors.Wrapf(ErrUnknownSlot, "%q", slot)
	}
	draft, err := svc.Get(ctx, id)
	if err != nil {
		return Document{}, nil, err
	}
	value, _ := Get(draft.Record, documentsGroup+"."+slot)
	doc, _ := value.(*Document)
	if doc == nil {
		return Document{}, nil, errors.Wrapf(core.ErrBlobNotFound, "%q", slot)
	}
	_, rc, err := svc.blobs.Get(ctx, doc.Key)
	if err != nil {
		return Document{}, nil, errors.Wrap(err, "opening document")
	}
	return *doc, rc, nil
}

// Submit sends draft id to the student backend. The outcome is recorded on the draft: succeeded
// (fresh record, step 1) or failed (record kept, Failure set). An invalid form returns a
// *core.ValidationError and the backend is not called.
func (svc *Service) Submit(ctx context.Context, id string) (Draft, error) {
	var (
		payload Payload
		formErr error
		since   time.Time
	)
	draft, err := svc.update(ctx, id, func(d *Draft, m *Machine) error {
		var err error
		payload, err = m.BeginSubmit()
		if err != nil {
			if errors.Cause(err) == ErrSubmissionInProgress {
				return err
			}
			formErr = err
			return nil
		}
		// stores keep microseconds
		since = NowFunc().UTC().Truncate(time.Microsecond)
		d.SubmittingSince = &since
		return nil
	})
	if err != nil {
		return draft, err
	}
	if formErr != nil {
		svc.metrics.IncrementSubmission(outcomeInvalid)
		return draft, formErr
	}

	// a submission in flight runs to completion even if the caller goes away
	subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), svc.submitTimeout)
	defer cancel()
	start := time.Now()
	submitErr := svc.submitter.Submit(subCtx, payload)
	svc.metrics.ObserveSubmit(start)

	// the outcome is recorded even when it arrives after readers have seen the submission expire
	draft, err = svc.modify(context.WithoutCancel(ctx), id, false, func(d *Draft, m *Machine) error {
		if d.SubmittingSince == nil || !d.SubmittingSince.Equal(since) {
			return errors.Wrap(ErrNotSubmitting, "submission superseded")
		}
		if err := m.CompleteSubmit(submitErr); err != nil {
			return err
		}
		d.SubmittingSince = nil
		if submitErr == nil {
			now := NowFunc().UTC()
			d.LastSubmittedAt = &now
			d.Submissions++
		}
		return nil
	})
	if err != nil {
		return draft, errors.Wrap(err, "completing submission")
	}

	if submitErr != nil {
		svc.metrics.IncrementSubmission(outcomeFailed)
		svc.logger.Warn(fmt.Sprintf("registration %s rejected: %s", id, draft.Failure), submitErr)
		return draft, nil
	}

	svc.metrics.IncrementSubmission(outcomeSucceeded)
	svc.logger.Info(fmt.Sprintf("registration %s submitted: admission no. %s", id, payload.Fields["admissionNo"]))
	for _, doc := range payload.Files {
		svc.deleteBlob(context.WithoutCancel(ctx), doc.Key)
	}
	svc.notifyParents(payload)
	return draft, nil
}

// Discard deletes draft id and its documents.
func (svc *Service) Discard(ctx context.Context, id string) error {
	unlock := svc.locks.lock(id)
	defer unlock()

	if _, err := svc.repo.GetDraftByID(ctx, id); err != nil {
		return errors.Wrap(err, "getting draft")
	}
	if err := svc.deleteDraftBlobs(ctx, id); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteDraftsByID(ctx, id), "deleting draft")
}

// PurgeStale deletes the drafts not updated for longer than olderThan and returns how many were deleted.
func (svc *Service) PurgeStale(ctx context.Context, olderThan time.Duration) (int, error) {
	drafts, err := svc.repo.QueryDrafts(ctx, DraftFilter{UpdatedBefore: NowFunc().Add(-olderThan)}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying stale drafts")
	}
	ids := make([]string, 0, len(drafts))
	for _, d := range drafts {
		if err = svc.deleteDraftBlobs(ctx, d.ID); err != nil {
			return 0, err
		}
		ids = append(ids, d.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err = svc.repo.DeleteDraftsByID(ctx, ids...); err != nil {
		return 0, errors.Wrap(err, "deleting stale drafts")
	}
	return len(ids), nil
}

func (svc *Service) deleteDraftBlobs(ctx context.Context, id string) error {
	infos, err := svc.blobs.List(ctx, path.Join("drafts", id)+"/")
	if err != nil {
		return errors.Wrap(err, "listing draft documents")
	}
	for _, info := range infos {
		svc.deleteBlob(ctx, info.Key)
	}
	return nil
}

func (svc *Service) deleteBlob(ctx context.Context, key string) {
	if _, err := svc.blobs.Delete(ctx, key); err != nil {
		svc.logger.Error(fmt.Sprintf("deleting document %s: %v", key, err), err)
	}
}

type registrationReceivedData struct {
	ParentName  string
	StudentName string
	AdmissionNo string
	Class       string
	SubmittedAt string
}

// notifyParents emails the parents of a submitted registration.
func (svc *Service) notifyParents(payload Payload) {
	var to []mail.Address
	for _, parent := range []string{"father", "mother"} {
		email := core.CleanString(payload.Fields[parent+".email"], true /* lower */)
		if email == "" {
			continue
		}
		to = append(to, mail.Address{Name: payload.Fields[parent+".name"], Address: email})
	}
	if len(to) == 0 {
		return
	}

	studentName := Record{
		FirstName:  payload.Fields["firstName"],
		MiddleName: payload.Fields["middleName"],
		LastName:   payload.Fields["lastName"],
	}.FullName()

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           to,
		Subject:      "Registration received for " + studentName,
		TemplateName: registrationReceivedTmpl,
		TemplateData: registrationReceivedData{
			ParentName:  to[0].Name,
			StudentName: studentName,
			AdmissionNo: payload.Fields["admissionNo"],
			Class:       payload.Fields["currentSession.class"],
			SubmittedAt: NowFunc().Format("02 Jan 2006"),
		},
	})
}

// fieldError turns edit errors caused by the value into a field-level validation error.
func fieldError(err error, path string) error {
	switch errors.Cause(err) {
	case ErrUnknownPath, ErrInvalidValue, ErrDerivedField:
		return core.NewValidationError(err, core.FieldError{Field: path, Error: errors.Cause(err).Error()})
	}
	return err
}

// draftLocks serialises the callers of each draft.
type (
	draftLocks struct {
		mu    sync.Mutex
		locks map[string]*draftLock
	}

	draftLock struct {
		sync.Mutex
		refs int
	}
)

func (l *draftLocks) lock(id string) (unlock func()) {
	l.mu.Lock()
	dl, ok := l.locks[id]
	if !ok {
		dl = &draftLock{}
		l.locks[id] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.Lock()
	return func() {
		dl.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
