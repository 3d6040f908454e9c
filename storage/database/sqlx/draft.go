// Package sqlxrepos keeps registration drafts in PostgreSQL.
package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ravi1475/School-ERPS-sub002/core"
	"github.com/ravi1475/School-ERPS-sub002/core/registration"
)

// invalidTextRepresentation is the psql code for a malformed value, such as an id that is not a UUID.
const invalidTextRepresentation = pq.ErrorCode("22P02")

const draftColumns = `id, step, status, failure, record, errors, created_by, created_at, updated_at,
	submitting_since, last_submitted, submissions`

type draftRow struct {
	ID              string         `db:"id"`
	Step            int            `db:"step"`
	Status          string         `db:"status"`
	Failure         null.String    `db:"failure"`
	Record          types.JSONText `db:"record"`
	Errors          types.JSONText `db:"errors"`
	CreatedBy       null.String    `db:"created_by"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	SubmittingSince null.Time      `db:"submitting_since"`
	LastSubmitted   null.Time      `db:"last_submitted"`
	Submissions     int            `db:"submissions"`
}

type draftRepository struct {
	db sqlx.ExtContext
}

var _ registration.Repository = (*draftRepository)(nil) // interface compliance check

func NewDraftRepository(db sqlx.ExtContext) *draftRepository {
	return &draftRepository{db: db}
}

func toRow(d registration.Draft) (draftRow, error) {
	rec, err := json.Marshal(d.Record)
	if err != nil {
		return draftRow{}, errors.Wrap(err, "encoding record")
	}
	errs := d.Errors
	if errs == nil {
		errs = make(registration.ErrorMap)
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return draftRow{}, errors.Wrap(err, "encoding errors")
	}
	return draftRow{
		ID:              d.ID,
		Step:            d.Step,
		Status:          string(d.Status),
		Failure:         null.NewString(d.Failure, d.Failure != ""),
		Record:          rec,
		Errors:          errsJSON,
		CreatedBy:       null.NewString(d.CreatedBy, d.CreatedBy != ""),
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
		SubmittingSince: null.TimeFromPtr(d.SubmittingSince),
		LastSubmitted:   null.TimeFromPtr(d.LastSubmittedAt),
		Submissions:     d.Submissions,
	}, nil
}

func fromRow(row draftRow) (registration.Draft, error) {
	d := registration.Draft{
		ID: row.ID,
		State: registration.State{
			Step:    row.Step,
			Status:  registration.Status(row.Status),
			Failure: row.Failure.String,
			Errors:  make(registration.ErrorMap),
		},
		CreatedBy:       row.CreatedBy.String,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		SubmittingSince: row.SubmittingSince.Ptr(),
		LastSubmittedAt: row.LastSubmitted.Ptr(),
		Submissions:     row.Submissions,
	}
	if err := row.Record.Unmarshal(&d.Record); err != nil {
		return registration.Draft{}, errors.Wrapf(err, "decoding record of %s", row.ID)
	}
	if err := row.Errors.Unmarshal(&d.Errors); err != nil {
		return registration.Draft{}, errors.Wrapf(err, "decoding errors of %s", row.ID)
	}
	return d, nil
}

func (repo *draftRepository) CreateDraft(ctx context.Context, draft registration.Draft) (registration.Draft, error) {
	row, err := toRow(draft)
	if err != nil {
		return registration.Draft{}, err
	}
	q := `INSERT INTO registration_drafts (` + draftColumns + `) VALUES (
		:id, :step, :status, :failure, :record, :errors, :created_by, :created_at, :updated_at,
		:submitting_since, :last_submitted, :submissions)`
	if _, err = sqlx.NamedExecContext(ctx, repo.db, q, row); err != nil {
		return registration.Draft{}, errors.Wrap(err, "inserting draft")
	}
	return draft, nil
}

func (repo *draftRepository) GetDraftByID(ctx context.Context, id string) (registration.Draft, error) {
	var row draftRow
	q := `SELECT ` + draftColumns + ` FROM registration_drafts WHERE id = $1`
	if err := sqlx.GetContext(ctx, repo.db, &row, q, id); err != nil {
		return registration.Draft{}, trapNoRowsErr(err, "getting draft")
	}
	return fromRow(row)
}

func (repo *draftRepository) UpdateDraft(ctx context.Context, draft registration.Draft) (registration.Draft, error) {
	row, err := toRow(draft)
	if err != nil {
		return registration.Draft{}, err
	}
	q := `UPDATE registration_drafts SET step = :step, status = :status, failure = :failure, record = :record,
		errors = :errors, updated_at = :updated_at, submitting_since = :submitting_since,
		last_submitted = :last_submitted, submissions = :submissions
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.db, q, row)
	if err != nil {
		return registration.Draft{}, trapNoRowsErr(err, "updating draft")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return registration.Draft{}, registration.ErrNotFound
	}
	return draft, nil
}

func (repo *draftRepository) QueryDrafts(ctx context.Context, filter registration.DraftFilter, orderings []core.DBOrdering) ([]registration.Draft, error) {
	where, args := filterClause(filter)
	q := `SELECT ` + draftColumns + ` FROM registration_drafts` + where + orderClause(orderings)

	var rows []draftRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying drafts")
	}
	drafts := make([]registration.Draft, 0, len(rows))
	for _, row := range rows {
		d, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

func (repo *draftRepository) DeleteDraftsByID(ctx context.Context, ids ...string) error {
	ids = draftIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM registration_drafts WHERE id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting drafts")
	}
	return nil
}

func filterClause(filter registration.DraftFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, cond+" $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		add("status =", string(filter.Status))
	}
	if filter.CreatedBy != "" {
		add("created_by =", filter.CreatedBy)
	}
	if !filter.UpdatedBefore.IsZero() {
		add("updated_at <", filter.UpdatedBefore.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// orderClause expects orderings cleaned with registration.DraftOrderingFields.
func orderClause(orderings []core.DBOrdering) string {
	if len(orderings) == 0 {
		return " ORDER BY updated_at DESC"
	}
	cols := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if _, ok := registration.DraftOrderingFields[ord.Field]; !ok {
			continue
		}
		cols = append(cols, ord.String())
	}
	if len(cols) == 0 {
		return " ORDER BY updated_at DESC"
	}
	return " ORDER BY " + strings.Join(cols, ", ")
}

// draftIDs drops the ids that cannot name a draft.
func draftIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

// trapNoRowsErr maps psql "no rows" err, and ids that are not UUIDs, to registration.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return registration.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation {
		return registration.ErrNotFound
	}
	return errors.Wrap(err, msg)
}
