package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldwatch/coldwatch/internal/types"
)

func TestLastFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	f := NewLastFile(path)
	ctx := context.Background()

	_, err := f.Latest(ctx)
	assert.ErrorIs(t, err, ErrNoReading)

	at := time.Date(2024, 7, 14, 8, 30, 0, 0, time.Local)
	require.NoError(t, f.PersistLast(ctx, types.NewReading(6, at)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "14-07-2024 08:30:00 6.0", string(raw))

	require.NoError(t, f.PersistLast(ctx, types.NewReading(-2.5, at.Add(time.Minute))))
	got, err := f.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, -2.5, got.Value)
	assert.True(t, got.Timestamp.Equal(at.Add(time.Minute)))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLastFile_MissingDirectory(t *testing.T) {
	f := NewLastFile(filepath.Join(t.TempDir(), "missing", "data"))
	err := f.PersistLast(context.Background(), types.NewReading(1, time.Now()))
	require.Error(t, err)
}

func TestLastFile_CancelledContext(t *testing.T) {
	f := NewLastFile(filepath.Join(t.TempDir(), "data"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.PersistLast(ctx, types.NewReading(1, time.Now())), context.Canceled)
	_, err := f.Latest(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseLastLine(t *testing.T) {
	r, err := ParseLastLine("01-12-2023 23:05:59 4.75\n")
	require.NoError(t, err)
	assert.Equal(t, 4.75, r.Value)
	assert.Equal(t, "01-12-2023", r.Date())
	assert.Equal(t, "23:05:59", r.Clock())

	_, err = ParseLastLine("   ")
	assert.ErrorIs(t, err, ErrNoReading)

	for _, bad := range []string{"01-12-2023 4.75", "2023-12-01 23:05:59 4.75", "01-12-2023 23:05:59 warm"} {
		_, err := ParseLastLine(bad)
		assert.Error(t, err, bad)
	}
}
