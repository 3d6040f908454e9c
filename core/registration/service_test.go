package registration_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi1475/School-ERPS-sub002/core"
	"github.com/ravi1475/School-ERPS-sub002/core/registration"
	memblob "github.com/ravi1475/School-ERPS-sub002/services/blob/memory"
	emailsvc "github.com/ravi1475/School-ERPS-sub002/services/email"
	inmemdb "github.com/ravi1475/School-ERPS-sub002/storage/database/inmem"
	"github.com/ravi1475/School-ERPS-sub002/tests"
)

var (
	pngData = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 64)...)
	pdfData = []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")
)

type serviceFixture struct {
	svc     *registration.Service
	repo    registration.Repository
	blobs   *memblob.Store
	sub     *testutil.Submitter
	mailSvc *emailsvc.ConsoleServiceMock
	logger  *testutil.Logger
	metrics *registration.Metrics
}

func setupService(t *testing.T) serviceFixture {
	t.Helper()
	testutil.FreezeTime(t)

	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(logger, conf)
	validate, translator := testutil.NewValidate()

	f := serviceFixture{
		repo:    inmemdb.NewDraftRepository(inmemdb.Open()),
		blobs:   memblob.New(),
		sub:     &testutil.Submitter{},
		mailSvc: emailsvc.NewConsoleServiceMock(conf, logger),
		logger:  logger,
		metrics: registration.NewMetrics(prometheus.NewRegistry()),
	}
	svc, err := registration.NewService(registration.ServiceDeps{
		Repo:       f.repo,
		Blobs:      f.blobs,
		Submitter:  f.sub,
		MailSvc:    f.mailSvc,
		Logger:     logger,
		Metrics:    f.metrics,
		Validate:   validate,
		Translator: translator,
		Conf:       conf,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

// createValidDraft stores a draft on the last step with a complete record.
func (f serviceFixture) createValidDraft(t *testing.T) registration.Draft {
	t.Helper()
	draft, err := f.svc.Start(context.Background(), "registrar1")
	require.NoError(t, err)
	draft.State.Step = registration.LastStep
	draft.State.Record = testutil.ValidRecord(t)
	draft, err = f.repo.UpdateDraft(context.Background(), draft)
	require.NoError(t, err)
	return draft
}

func TestNewService_missingDeps(t *testing.T) {
	_, err := registration.NewService(registration.ServiceDeps{})
	assert.Error(t, err)
}

func TestService_Start(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	draft, err := f.svc.Start(ctx, "registrar1")
	require.NoError(t, err)
	assert.NotEmpty(t, draft.ID)
	assert.Equal(t, registration.FirstStep, draft.Step)
	assert.Equal(t, registration.StatusEditing, draft.Status)
	assert.Equal(t, "registrar1", draft.CreatedBy)
	assert.Equal(t, testutil.Today, draft.CreatedAt)
	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.DraftsStarted))

	got, err := f.svc.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft, got)

	_, err = f.svc.Get(ctx, "nope")
	assert.True(t, errors.Is(err, registration.ErrNotFound), "error = %v", err)
}

func TestService_EditField(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	draft, err := f.svc.Start(ctx, "")
	require.NoError(t, err)

	draft, err = f.svc.EditField(ctx, draft.ID, "dateOfBirth", "2015-03-20")
	require.NoError(t, err)
	assert.Equal(t, "9", draft.Record.Age)

	stored, err := f.repo.GetDraftByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "2015-03-20", stored.Record.DateOfBirth)

	tests := []struct {
		name    string
		path    string
		value   interface{}
		wantErr error
	}{
		{name: "unknown path", path: "nickname", value: "x", wantErr: registration.ErrUnknownPath},
		{name: "derived", path: "age", value: "3", wantErr: registration.ErrDerivedField},
		{name: "invalid value", path: "firstName", value: true, wantErr: registration.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.EditField(ctx, draft.ID, tt.path, tt.value)
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "error = %v", err)
			assert.True(t, errors.Is(vErr.Err, tt.wantErr), "error = %v", vErr.Err)
			assert.Equal(t, tt.path, vErr.Fields[0].Field)
		})
	}

	_, err = f.svc.EditField(ctx, "nope", "firstName", "x")
	assert.True(t, errors.Is(err, registration.ErrNotFound))
}

func TestService_Advance(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	draft, err := f.svc.Start(ctx, "")
	require.NoError(t, err)

	draft, err = f.svc.Advance(ctx, draft.ID)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "error = %v", err)
	assert.Equal(t, registration.ErrStepIncomplete, vErr.Err)
	assert.Equal(t, "This field is required", vErr.FieldMap()["admissionNo"])
	assert.Equal(t, 1, draft.Step)

	stored, err := f.repo.GetDraftByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "This field is required", stored.Errors["admissionNo"], "blocked step errors are saved")

	for path, value := range testutil.ValidFields()[1] {
		_, err = f.svc.EditField(ctx, draft.ID, path, value)
		require.NoError(t, err)
	}
	draft, err = f.svc.Advance(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, draft.Step)
	assert.Empty(t, draft.Errors)

	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.StepAdvances.WithLabelValues("1", "blocked")))
	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.StepAdvances.WithLabelValues("1", "advanced")))

	draft, err = f.svc.Retreat(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, draft.Step)
}

func TestService_UploadDocument(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	draft, err := f.svc.Start(ctx, "")
	require.NoError(t, err)

	tests := []struct {
		name      string
		slot      string
		data      []byte
		wantErr   error
		wantType  string
		wantField string
	}{
		{name: "png", slot: "studentImage", data: pngData, wantType: "image/png"},
		{name: "pdf", slot: "birthCertificate", data: pdfData, wantType: "application/pdf"},
		{name: "unknown slot", slot: "selfie", data: pngData, wantErr: registration.ErrUnknownSlot},
		{name: "empty", slot: "markSheet", data: nil, wantErr: registration.ErrDocumentEmpty, wantField: "documents.markSheet"},
		{name: "too large", slot: "markSheet", data: append(pngData, make([]byte, 2<<10)...), wantErr: registration.ErrDocumentTooLarge, wantField: "documents.markSheet"},
		{name: "text file", slot: "markSheet", data: []byte("just some notes"), wantErr: registration.ErrDocumentType, wantField: "documents.markSheet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.UploadDocument(ctx, draft.ID, tt.slot, tt.slot+".bin", bytes.NewReader(tt.data))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "error = %v", err)
				if tt.wantField != "" {
					var vErr *core.ValidationError
					require.True(t, errors.As(err, &vErr))
					assert.Contains(t, vErr.FieldMap(), tt.wantField)
				}
				return
			}
			require.NoError(t, err)
			value, _ := registration.Get(got.Record, "documents."+tt.slot)
			doc := value.(*registration.Document)
			require.NotNil(t, doc)
			assert.Equal(t, tt.wantType, doc.ContentType)
			assert.Equal(t, int64(len(tt.data)), doc.Size)
			assert.Len(t, doc.Checksum, 64)

			info, rc, err := f.blobs.Get(ctx, doc.Key)
			require.NoError(t, err)
			defer rc.Close()
			content, _ := io.ReadAll(rc)
			assert.Equal(t, tt.data, content)
			assert.Equal(t, doc.Checksum, info.Metadata["checksum"])
		})
	}
	assert.Equal(t, float64(2), promtest.ToFloat64(f.metrics.DocumentsUploaded))
}

type failingUpdateRepo struct {
	registration.Repository
	err error
}

func (repo failingUpdateRepo) UpdateDraft(context.Context, registration.Draft) (registration.Draft, error) {
	return registration.Draft{}, repo.err
}

func TestService_UploadDocument_saveFails(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	conf := testutil.NewConfig()
	validate, translator := testutil.NewValidate()
	saveErr := errors.New("connection reset")
	svc, err := registration.NewService(registration.ServiceDeps{
		Repo:       failingUpdateRepo{Repository: f.repo, err: saveErr},
		Blobs:      f.blobs,
		Submitter:  f.sub,
		MailSvc:    f.mailSvc,
		Logger:     f.logger,
		Metrics:    registration.NewMetrics(prometheus.NewRegistry()),
		Validate:   validate,
		Translator: translator,
		Conf:       conf,
	})
	require.NoError(t, err)

	draft, err := svc.Start(ctx, "")
	require.NoError(t, err)
	_, err = svc.UploadDocument(ctx, draft.ID, "markSheet", "m.pdf", bytes.NewReader(pdfData))
	assert.True(t, errors.Is(err, saveErr), "error = %v", err)

	infos, err := f.blobs.List(ctx, "drafts/"+draft.ID+"/")
	require.NoError(t, err)
	assert.Empty(t, infos, "unsaved document is deleted")
}

func TestService_UploadDocument_replacesAndRemoves(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	draft, err := f.svc.Start(ctx, "")
	require.NoError(t, err)
	prefix := "drafts/" + draft.ID + "/"

	_, err = f.svc.UploadDocument(ctx, draft.ID, "studentImage", "a.png", bytes.NewReader(pngData))
	require.NoError(t, err)
	draft, err = f.svc.UploadDocument(ctx, draft.ID, "studentImage", "b.pdf", bytes.NewReader(pdfData))
	require.NoError(t, err)
	assert.Equal(t, "b.pdf", draft.Record.Documents.StudentImage.Name)

	infos, err := f.blobs.List(ctx, prefix)
	require.NoError(t, err)
	require.Len(t, infos, 1, "the replaced file is deleted")
	assert.Equal(t, draft.Record.Documents.StudentImage.Key, infos[0].Key)

	doc, rc, err := f.svc.OpenDocument(ctx, draft.ID, "studentImage")
	require.NoError(t, err)
	content, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "b.pdf", doc.Name)
	assert.Equal(t, pdfData, content)

	draft, err = f.svc.RemoveDocument(ctx, draft.ID, "studentImage")
	require.NoError(t, err)
	assert.Nil(t, draft.Record.Documents.StudentImage)
	infos, err = f.blobs.List(ctx, prefix)
	require.NoError(t, err)
	assert.Empty(t, infos)

	_, _, err = f.svc.OpenDocument(ctx, draft.ID, "studentImage")
	assert.True(t, errors.Is(err, core.ErrBlobNotFound), "error = %v", err)
}

func TestService_Submit_success(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	draft := f.createValidDraft(t)
	_, err := f.svc.UploadDocument(ctx, draft.ID, "birthCertificate", "birth.pdf", bytes.NewReader(pdfData))
	require.NoError(t, err)

	draft, err = f.svc.Submit(ctx, draft.ID)
	require.NoError(t, err)

	assert.Equal(t, registration.StatusSucceeded, draft.Status)
	assert.Equal(t, registration.FirstStep, draft.Step)
	assert.Equal(t, registration.NewRecord(), draft.Record)
	assert.Nil(t, draft.SubmittingSince)
	require.NotNil(t, draft.LastSubmittedAt)
	assert.Equal(t, 1, draft.Submissions)

	require.Equal(t, 1, f.sub.Calls())
	payload := f.sub.Payloads()[0]
	assert.Equal(t, "ADM-2024-001", payload.Fields["admissionNo"])
	assert.Equal(t, "42", payload.Fields["partnerId"])
	assert.Contains(t, payload.Files, "documents.birthCertificate")

	infos, err := f.blobs.List(ctx, "drafts/"+draft.ID+"/")
	require.NoError(t, err)
	assert.Empty(t, infos, "submitted documents are deleted")

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Len(t, sent[0].To, 2)
	assert.Equal(t, "Registration received for Asha Verma", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "ADM-2024-001")

	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.Submissions.WithLabelValues("succeeded")))
}

func TestService_Submit_failure(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	before := f.createValidDraft(t)
	f.sub.Err = &registration.SubmissionError{StatusCode: 409, Message: "duplicate admission number"}

	draft, err := f.svc.Submit(ctx, before.ID)
	require.NoError(t, err)

	assert.Equal(t, registration.StatusFailed, draft.Status)
	assert.Equal(t, "duplicate admission number", draft.Failure)
	assert.Equal(t, before.Record, draft.Record)
	assert.Equal(t, before.Step, draft.Step)
	assert.Nil(t, draft.SubmittingSince)
	assert.Zero(t, draft.Submissions)
	assert.Empty(t, f.mailSvc.SentMessages())
	assert.Len(t, f.logger.Logs("warn"), 1)
	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.Submissions.WithLabelValues("failed")))
}

func TestService_Submit_invalid(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	draft, err := f.svc.Start(ctx, "")
	require.NoError(t, err)

	draft, err = f.svc.Submit(ctx, draft.ID)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "error = %v", err)
	assert.Equal(t, registration.ErrFormIncomplete, vErr.Err)
	assert.Zero(t, f.sub.Calls())

	stored, err := f.repo.GetDraftByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, registration.StatusEditing, stored.Status)
	assert.Contains(t, stored.Errors, "admissionNo")
}

func TestService_Submit_inProgress(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	draft := f.createValidDraft(t)
	f.sub.Hold = make(chan struct{})
	f.sub.Started = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Submit(ctx, draft.ID)
		done <- err
	}()
	select {
	case <-f.sub.Started:
	case <-time.After(5 * time.Second):
		t.Fatal("submission did not start")
	}

	_, err := f.svc.Submit(ctx, draft.ID)
	assert.True(t, errors.Is(err, registration.ErrSubmissionInProgress), "error = %v", err)
	_, err = f.svc.UploadDocument(ctx, draft.ID, "studentImage", "a.png", bytes.NewReader(pngData))
	assert.True(t, errors.Is(err, registration.ErrSubmissionInProgress), "error = %v", err)

	close(f.sub.Hold)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.sub.Calls())
}

func TestService_Submit_lateSuccess(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	draft := f.createValidDraft(t)
	_, err := f.svc.UploadDocument(ctx, draft.ID, "birthCertificate", "birth.pdf", bytes.NewReader(pdfData))
	require.NoError(t, err)

	// the backend accepts the registration just after the submit timeout
	f.sub.Done = func() {
		registration.NowFunc = func() time.Time { return testutil.Today.Add(time.Minute + time.Millisecond) }
	}

	draft, err = f.svc.Submit(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, registration.StatusSucceeded, draft.Status)
	assert.Equal(t, registration.NewRecord(), draft.Record)
	assert.Equal(t, 1, draft.Submissions)

	got, err := f.svc.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, registration.StatusSucceeded, got.Status)

	infos, err := f.blobs.List(ctx, "drafts/"+draft.ID+"/")
	require.NoError(t, err)
	assert.Empty(t, infos)
	assert.Len(t, f.mailSvc.SentMessages(), 1)
}

func TestService_expiredSubmission(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	draft := f.createValidDraft(t)
	since := testutil.Today.Add(-2 * time.Minute)
	draft.Status = registration.StatusSubmitting
	draft.SubmittingSince = &since
	_, err := f.repo.UpdateDraft(ctx, draft)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, registration.StatusFailed, got.Status)
	assert.NotEmpty(t, got.Failure)

	// the draft can be submitted again
	got, err = f.svc.Submit(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, registration.StatusSucceeded, got.Status)
}

func TestService_DiscardAndPurge(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	old, err := f.svc.Start(ctx, "")
	require.NoError(t, err)
	_, err = f.svc.UploadDocument(ctx, old.ID, "markSheet", "m.pdf", bytes.NewReader(pdfData))
	require.NoError(t, err)
	old, err = f.repo.GetDraftByID(ctx, old.ID)
	require.NoError(t, err)
	old.UpdatedAt = testutil.Today.Add(-96 * time.Hour)
	_, err = f.repo.UpdateDraft(ctx, old)
	require.NoError(t, err)

	recent, err := f.svc.Start(ctx, "")
	require.NoError(t, err)
	discarded, err := f.svc.Start(ctx, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Discard(ctx, discarded.ID))
	_, err = f.svc.Get(ctx, discarded.ID)
	assert.True(t, errors.Is(err, registration.ErrNotFound))
	assert.True(t, errors.Is(f.svc.Discard(ctx, discarded.ID), registration.ErrNotFound))

	n, err := f.svc.PurgeStale(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	drafts, err := f.svc.Query(ctx, registration.DraftFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, recent.ID, drafts[0].ID)

	infos, err := f.blobs.List(ctx, "drafts/")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestService_Query(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, "alice")
	require.NoError(t, err)
	b, err := f.svc.Start(ctx, "bob")
	require.NoError(t, err)
	c := f.createValidDraft(t)
	c.Status = registration.StatusFailed
	c.UpdatedAt = testutil.Today.Add(time.Hour)
	_, err = f.repo.UpdateDraft(ctx, c)
	require.NoError(t, err)

	ids := func(drafts []registration.Draft) []string {
		out := make([]string, 0, len(drafts))
		for _, d := range drafts {
			out = append(out, d.ID)
		}
		return out
	}

	tests := []struct {
		name      string
		filter    registration.DraftFilter
		orderings []core.DBOrdering
		want      []string
	}{
		{name: "by creator", filter: registration.DraftFilter{CreatedBy: "alice"}, want: []string{a.ID}},
		{name: "by status", filter: registration.DraftFilter{Status: registration.StatusFailed}, want: []string{c.ID}},
		{name: "latest first", orderings: []core.DBOrdering{{Field: "updated_at"}, {Field: "step", Ascending: true}}, want: []string{c.ID, a.ID, b.ID}},
		{name: "unknown ordering ignored", filter: registration.DraftFilter{Status: registration.StatusEditing}, orderings: []core.DBOrdering{{Field: "record"}}, want: []string{a.ID, b.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, err := f.svc.Query(ctx, tt.filter, tt.orderings)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ids(drafts))
			if len(tt.orderings) > 0 && len(tt.want) > 0 {
				assert.Equal(t, tt.want[0], drafts[0].ID)
			}
		})
	}
}
