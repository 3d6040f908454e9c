package memblob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi1475/School-ERPS-sub002/core"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	assert.Equal(t, core.BlobDriverMemory, s.Driver())

	meta := map[string]string{"filename": "a.pdf"}
	info, err := s.Put(ctx, "drafts/1/markSheet/a", bytes.NewReader([]byte("data")), core.BlobPutOptions{ContentType: "application/pdf", Metadata: meta})
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size)
	meta["filename"] = "changed"

	_, err = s.Put(ctx, "drafts/1/markSheet/a", bytes.NewReader([]byte("other")), core.BlobPutOptions{})
	assert.Error(t, err, "keys are never overwritten")

	_, err = s.Put(ctx, "drafts/1/studentImage/b", bytes.NewReader([]byte("img")), core.BlobPutOptions{})
	require.NoError(t, err)
	_, err = s.Put(ctx, "drafts/2/studentImage/c", bytes.NewReader([]byte("img")), core.BlobPutOptions{})
	require.NoError(t, err)

	got, rc, err := s.Get(ctx, "drafts/1/markSheet/a")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, []byte("data"), data)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, "a.pdf", got.Metadata["filename"])

	infos, err := s.List(ctx, "drafts/1/")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "drafts/1/markSheet/a", infos[0].Key)
	assert.Equal(t, "drafts/1/studentImage/b", infos[1].Key)

	deleted, err := s.Delete(ctx, "drafts/1/markSheet/a")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = s.Delete(ctx, "drafts/1/markSheet/a")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, _, err = s.Get(ctx, "drafts/1/markSheet/a")
	assert.True(t, errors.Is(err, core.ErrBlobNotFound), "error = %v", err)
}
