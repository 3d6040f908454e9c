// Package storage opens the configured draft & blob stores.
package storage

import (
	"context"
	"fmt"

	"github.com/ravi1475/School-ERPS-sub002/core"
	"github.com/ravi1475/School-ERPS-sub002/core/registration"
	memblob "github.com/ravi1475/School-ERPS-sub002/services/blob/memory"
	s3blob "github.com/ravi1475/School-ERPS-sub002/services/blob/s3"
	"github.com/ravi1475/School-ERPS-sub002/storage/database"
	inmemdb "github.com/ravi1475/School-ERPS-sub002/storage/database/inmem"
	sqlxrepos "github.com/ravi1475/School-ERPS-sub002/storage/database/sqlx"
	redisrepos "github.com/ravi1475/School-ERPS-sub002/storage/redis"
)

const (
	DraftStoreMemory   = "memory"
	DraftStorePostgres = "postgres"
	DraftStoreRedis    = "redis"
)

// OpenDraftStore returns the configured draft repository and the func closing it.
// With prepare set, the postgres database is created and migrated first.
func OpenDraftStore(ctx context.Context, conf *core.Config, prepare bool) (registration.Repository, func() error, error) {
	switch conf.Registration.DraftStore {
	case DraftStoreMemory:
		return inmemdb.NewDraftRepository(inmemdb.Open()), func() error { return nil }, nil

	case DraftStorePostgres:
		if prepare {
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, nil, err
			}
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		if prepare {
			if err = database.Migrate(db.DB, "up"); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return sqlxrepos.NewDraftRepository(db), db.Close, nil

	case DraftStoreRedis:
		client, err := redisrepos.Open(ctx, conf.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return redisrepos.NewDraftRepository(client, conf.Redis.DraftTTL), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown draft store %q", conf.Registration.DraftStore)
}

func OpenBlobStore(ctx context.Context, conf *core.Config) (core.BlobStore, error) {
	switch conf.Blob.Driver {
	case core.BlobDriverMemory:
		return memblob.New(), nil
	case core.BlobDriverS3:
		return s3blob.Open(ctx, conf.Blob)
	}
	return nil, fmt.Errorf("unknown blob driver %q", conf.Blob.Driver)
}
