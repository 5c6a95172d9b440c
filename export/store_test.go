package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purchase-export/extract"
)

func TestFileName(t *testing.T) {
	s := NewStore(t.TempDir(), "", nil)
	day := time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, "apple_purchases_2024-12-31.csv", s.FileName(extract.StatusSuccess, day))
	assert.Equal(t, "apple_purchases_partial_2024-12-31.csv", s.FileName(extract.StatusCancelled, day))
}

func TestSaveAndLatest(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, "purchases", nil)
	s.now = func() time.Time { return time.Date(2024, 12, 31, 9, 41, 0, 0, time.UTC) }

	res := &extract.Result{
		Status:  extract.StatusCancelled,
		Records: []extract.Record{record("MS71XHJJ3K", "Weather Pro", "$4.99")},
	}
	path, err := s.Save(res)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20241231_094100", "purchases_partial_2024-12-31.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Encode(res.Records)+"\n", string(content))

	s.now = func() time.Time { return time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC) }
	_, err = s.Save(&extract.Result{Status: extract.StatusSuccess, Records: res.Records})
	require.NoError(t, err)

	latest, err := s.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "20250102_080000", latest.Folder)
	require.Len(t, latest.Files, 1)
	assert.Equal(t, "purchases_2025-01-02.csv", latest.Files[0].Name)
}

func TestSaveSameSecondKeepsBothSessions(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, "purchases", nil)
	s.now = func() time.Time { return time.Date(2024, 12, 31, 9, 41, 0, 0, time.UTC) }
	records := []extract.Record{record("MS71XHJJ3K", "Weather Pro", "$4.99")}

	var paths []string
	for range 3 {
		path, err := s.Save(&extract.Result{Status: extract.StatusSuccess, Records: records})
		require.NoError(t, err)
		paths = append(paths, path)
	}
	assert.Equal(t, []string{
		filepath.Join(dir, "20241231_094100", "purchases_2024-12-31.csv"),
		filepath.Join(dir, "20241231_094100_2", "purchases_2024-12-31.csv"),
		filepath.Join(dir, "20241231_094100_3", "purchases_2024-12-31.csv"),
	}, paths)

	latest, err := s.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "20241231_094100_3", latest.Folder)
}

func TestLatestIgnoresOtherFolders(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"20241231_094100", "20241231_094100_2", "20241231_094100_10", "logs", "zz_backup", "20241231_094100_x"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, name), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20991231_000000"), nil, 0644))

	latest, err := NewStore(dir, "", nil).Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "20241231_094100_10", latest.Folder)
	assert.Empty(t, latest.Files)

	only := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(only, "logs"), 0755))
	latest, err = NewStore(only, "", nil).Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSaveWithoutRecords(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, "", nil)
	_, err := s.Save(&extract.Result{Status: extract.StatusSuccess})
	require.ErrorIs(t, err, ErrNoRecords)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is written for an empty run")
}

func TestLatestWithoutSessions(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing"), "", nil)
	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)
}
