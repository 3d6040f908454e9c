package registration

import (
	"context"
	"sort"
	"time"

	"github.com/ravi1475/School-ERPS-sub002/core"
)

type (
	// Draft is a registration in progress at the registration desk.
	// After a successful submission the draft starts over with a fresh record.
	Draft struct {
		ID string `json:"id"`
		State
		CreatedBy       string     `json:"createdBy,omitempty"`
		CreatedAt       time.Time  `json:"createdAt"`
		UpdatedAt       time.Time  `json:"updatedAt"`
		SubmittingSince *time.Time `json:"submittingSince,omitempty"`
		LastSubmittedAt *time.Time `json:"lastSubmittedAt,omitempty"`
		Submissions     int        `json:"submissions"`
	}

	DraftFilter struct {
		Status        Status    `query:"status"`
		CreatedBy     string    `query:"created_by"`
		UpdatedBefore time.Time `query:"-"`
	}

	Repository interface {
		CreateDraft(ctx context.Context, draft Draft) (Draft, error)
		GetDraftByID(ctx context.Context, id string) (Draft, error)
		UpdateDraft(ctx context.Context, draft Draft) (Draft, error)
		// QueryDrafts applies AND operation on the set DraftFilter fields.
		// Orderings must have been cleaned with DraftOrderingFields; drafts default to the latest updated first.
		QueryDrafts(ctx context.Context, filter DraftFilter, orderings []core.DBOrdering) ([]Draft, error)
		DeleteDraftsByID(ctx context.Context, ids ...string) error
	}
)

// DraftOrderingFields maps the accepted ordering names to draft columns.
var DraftOrderingFields = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"step":       "step",
	"status":     "status",
}

// Match reports whether d satisfies every set field of the filter.
func (f DraftFilter) Match(d Draft) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.CreatedBy != "" && d.CreatedBy != f.CreatedBy {
		return false
	}
	if !f.UpdatedBefore.IsZero() && !d.UpdatedAt.Before(f.UpdatedBefore) {
		return false
	}
	return true
}

// SortDrafts sorts drafts in place by orderings, for stores that cannot order natively.
func SortDrafts(drafts []Draft, orderings []core.DBOrdering) {
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "updated_at"}}
	}
	less := func(a, b Draft, field string) (bool, bool) { // less, equal
		switch field {
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt), a.UpdatedAt.Equal(b.UpdatedAt)
		case "step":
			return a.Step < b.Step, a.Step == b.Step
		case "status":
			return a.Status < b.Status, a.Status == b.Status
		}
		return false, true
	}
	sort.SliceStable(drafts, func(i, j int) bool {
		for _, ord := range orderings {
			lt, eq := less(drafts[i], drafts[j], ord.Field)
			if eq {
				continue
			}
			if ord.Ascending {
				return lt
			}
			return !lt
		}
		return false
	})
}
