package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "applications/a1/resume.pdf", Key("a1", "resume", "My CV.PDF"))
	assert.Equal(t, "applications/a1/academics", Key("a1", "academics", "transcript"))
	assert.Equal(t, "applications/a1/resume.doc", Key("a1", "resume", `C:\docs\cv.doc`))
}

func TestCleanKeyRejectsTraversal(t *testing.T) {
	for _, k := range []string{"", "../etc/passwd", "a/../../b", "a//b"} {
		_, err := cleanKey(k)
		assert.Error(t, err, k)
	}
	k, err := cleanKey("applications/a1/resume.pdf")
	require.NoError(t, err)
	assert.Equal(t, "applications/a1/resume.pdf", k)
}

func TestFSRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)

	key := Key("a1", "resume", "cv.pdf")
	require.NoError(t, s.Put(ctx, key, strings.NewReader("%PDF-1.7"), 8, "application/pdf"))
	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	assert.Error(t, s.Put(ctx, key, strings.NewReader("short"), 99, ""))
	rc, err = s.Get(ctx, key)
	require.NoError(t, err)
	data, _ = io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "%PDF-1.7", string(data), "failed put must not replace the object")

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsNoSuchKey(t *testing.T) {
	assert.True(t, isNoSuchKey(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.False(t, isNoSuchKey(errors.New("connection refused")))
	assert.False(t, isNoSuchKey(nil))
}
