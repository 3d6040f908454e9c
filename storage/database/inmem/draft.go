// Package inmemdb keeps registration drafts in process memory (DEV, tests).
package inmemdb

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/ravi1475/School-ERPS-sub002/core"
	"github.com/ravi1475/School-ERPS-sub002/core/registration"
)

var errDraftExists = errors.New("draft already exists")

type (
	DB struct {
		draft *draftTable
	}

	draftTable struct {
		mutex sync.RWMutex
		table map[string]registration.Draft
	}
)

func Open() *DB {
	return &DB{
		draft: &draftTable{table: make(map[string]registration.Draft)},
	}
}

type draftRepository struct {
	db *draftTable
}

var _ registration.Repository = (*draftRepository)(nil) // interface compliance check

func NewDraftRepository(db *DB) *draftRepository {
	return &draftRepository{db: db.draft}
}

// copyDraft detaches the mutable parts of a draft from the table.
func copyDraft(d registration.Draft) registration.Draft {
	errs := make(registration.ErrorMap, len(d.Errors))
	for k, v := range d.Errors {
		errs[k] = v
	}
	d.Errors = errs
	return d
}

func (repo *draftRepository) CreateDraft(_ context.Context, draft registration.Draft) (registration.Draft, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[draft.ID]; ok {
		return registration.Draft{}, errors.Wrapf(errDraftExists, "%q", draft.ID)
	}
	repo.db.table[draft.ID] = copyDraft(draft)
	return draft, nil
}

func (repo *draftRepository) GetDraftByID(_ context.Context, id string) (registration.Draft, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if d, ok := repo.db.table[id]; ok {
		return copyDraft(d), nil
	}
	return registration.Draft{}, registration.ErrNotFound
}

func (repo *draftRepository) UpdateDraft(_ context.Context, draft registration.Draft) (registration.Draft, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[draft.ID]; !ok {
		return registration.Draft{}, registration.ErrNotFound
	}
	repo.db.table[draft.ID] = copyDraft(draft)
	return draft, nil
}

func (repo *draftRepository) QueryDrafts(_ context.Context, filter registration.DraftFilter, orderings []core.DBOrdering) ([]registration.Draft, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	drafts := make([]registration.Draft, 0, len(repo.db.table))
	for _, d := range repo.db.table {
		if filter.Match(d) {
			drafts = append(drafts, copyDraft(d))
		}
	}
	registration.SortDrafts(drafts, orderings)
	return drafts, nil
}

func (repo *draftRepository) DeleteDraftsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
