package objstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutGet(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("%PDF-1.4 fake bytes")
	require.NoError(t, s.Put(ctx, "uploads/alice/paper.pdf", data, "application/pdf"))

	got, err := s.Get(ctx, "uploads/alice/paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFileStore_GetMissing(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "uploads/none.pdf")
	assert.Error(t, err)
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, s.Put(ctx, "../outside.pdf", []byte("x"), ""))
	_, err = s.Get(ctx, "../../etc/passwd")
	assert.Error(t, err)
}

func TestFileStore_EmptyKey(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "")
	assert.Error(t, err)
}
