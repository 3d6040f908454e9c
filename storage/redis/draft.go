// Package redisrepos keeps registration drafts in Redis as JSON documents that expire after a TTL.
package redisrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/ravi1475/School-ERPS-sub002/core"
	"github.com/ravi1475/School-ERPS-sub002/core/registration"
)

const (
	draftKeyPrefix = "school_erp:registration:draft:"
	scanCount      = 100
)

var errDraftExists = errors.New("draft already exists")

// Open connects to the Redis server at url.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

type draftRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ registration.Repository = (*draftRepository)(nil) // interface compliance check

// NewDraftRepository returns a repository whose drafts expire ttl after their last update (0: never).
func NewDraftRepository(client redis.UniversalClient, ttl time.Duration) *draftRepository {
	return &draftRepository{client: client, ttl: ttl}
}

func draftKey(id string) string {
	return draftKeyPrefix + id
}

func (repo *draftRepository) CreateDraft(ctx context.Context, draft registration.Draft) (registration.Draft, error) {
	data, err := json.Marshal(draft)
	if err != nil {
		return registration.Draft{}, errors.Wrap(err, "encoding draft")
	}
	ok, err := repo.client.SetNX(ctx, draftKey(draft.ID), data, repo.ttl).Result()
	if err != nil {
		return registration.Draft{}, errors.Wrap(err, "storing draft")
	}
	if !ok {
		return registration.Draft{}, errors.Wrapf(errDraftExists, "%q", draft.ID)
	}
	return draft, nil
}

func (repo *draftRepository) GetDraftByID(ctx context.Context, id string) (registration.Draft, error) {
	data, err := repo.client.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return registration.Draft{}, registration.ErrNotFound
	}
	if err != nil {
		return registration.Draft{}, errors.Wrap(err, "getting draft")
	}
	return decode(data)
}

func (repo *draftRepository) UpdateDraft(ctx context.Context, draft registration.Draft) (registration.Draft, error) {
	data, err := json.Marshal(draft)
	if err != nil {
		return registration.Draft{}, errors.Wrap(err, "encoding draft")
	}
	ok, err := repo.client.SetXX(ctx, draftKey(draft.ID), data, repo.ttl).Result()
	if err != nil {
		return registration.Draft{}, errors.Wrap(err, "storing draft")
	}
	if !ok {
		return registration.Draft{}, registration.ErrNotFound
	}
	return draft, nil
}

// QueryDrafts scans every draft key; the registration desk keeps few drafts at a time.
func (repo *draftRepository) QueryDrafts(ctx context.Context, filter registration.DraftFilter, orderings []core.DBOrdering) ([]registration.Draft, error) {
	drafts := make([]registration.Draft, 0)
	iter := repo.client.Scan(ctx, 0, draftKeyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		data, err := repo.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired since the scan
		}
		if err != nil {
			return nil, errors.Wrap(err, "getting draft")
		}
		d, err := decode(data)
		if err != nil {
			return nil, err
		}
		if filter.Match(d) {
			drafts = append(drafts, d)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning drafts")
	}
	registration.SortDrafts(drafts, orderings)
	return drafts, nil
}

func (repo *draftRepository) DeleteDraftsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, draftKey(id))
	}
	return errors.Wrap(repo.client.Del(ctx, keys...).Err(), "deleting drafts")
}

func decode(data []byte) (registration.Draft, error) {
	var d registration.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return registration.Draft{}, errors.Wrap(err, "decoding draft")
	}
	if d.Errors == nil {
		d.Errors = make(registration.ErrorMap)
	}
	return d, nil
}
