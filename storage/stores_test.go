package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi1475/School-ERPS-sub002/core"
	"github.com/ravi1475/School-ERPS-sub002/tests"
)

func TestOpenDraftStore(t *testing.T) {
	tests := []struct {
		name    string
		store   string
		wantErr string
	}{
		{name: "Memory", store: DraftStoreMemory},
		{name: "Unknown", store: "mongo", wantErr: `unknown draft store "mongo"`},
		{name: "Empty", store: "", wantErr: `unknown draft store ""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := testutil.NewConfig()
			conf.Registration.DraftStore = tt.store

			repo, closeRepo, err := OpenDraftStore(context.Background(), conf, false)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				assert.Nil(t, repo)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, repo)
			assert.NoError(t, closeRepo())
		})
	}
}

func TestOpenBlobStore(t *testing.T) {
	conf := testutil.NewConfig()

	conf.Blob.Driver = core.BlobDriverMemory
	blobs, err := OpenBlobStore(context.Background(), conf)
	require.NoError(t, err)
	assert.Equal(t, core.BlobDriverMemory, blobs.Driver())

	conf.Blob.Driver = "ftp"
	_, err = OpenBlobStore(context.Background(), conf)
	assert.EqualError(t, err, `unknown blob driver "ftp"`)
}
