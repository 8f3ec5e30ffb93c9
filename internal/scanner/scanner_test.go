// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestScanSortsAscendingBySizeAndFiltersExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "big.h5"), 300)
	writeFile(t, filepath.Join(root, "small.h5"), 10)
	writeFile(t, filepath.Join(root, "mid.H5"), 100) // extension match is case-insensitive
	writeFile(t, filepath.Join(root, "ignored.txt"), 1)
	writeFile(t, filepath.Join(root, "sub", "nested.h5"), 50)

	files, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, files, 4)

	var sizes []int64
	for _, f := range files {
		sizes = append(sizes, f.Size)
	}
	assert.Equal(t, []int64{10, 50, 100, 300}, sizes)
}

func TestScanMissingRootFails(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestFilterResumablePreservesOrder(t *testing.T) {
	root := t.TempDir()
	files := []File{{Path: "a.h5", Size: 1}, {Path: "b.h5", Size: 2}, {Path: "c.h5", Size: 3}}

	cache, err := Load(root)
	require.NoError(t, err)
	defer cache.Close()
	require.NoError(t, cache.MarkProcessed("b.h5"))

	out := FilterResumable(files, cache)
	require.Len(t, out, 2)
	assert.Equal(t, "a.h5", out[0].Path)
	assert.Equal(t, "c.h5", out[1].Path)
}

func TestCachePersistsAcrossReload(t *testing.T) {
	root := t.TempDir()

	cache, err := Load(root)
	require.NoError(t, err)
	require.NoError(t, cache.MarkProcessed("/data/run1.h5"))
	require.NoError(t, cache.Close())

	reloaded, err := Load(root)
	require.NoError(t, err)
	defer reloaded.Close()
	assert.True(t, reloaded.IsProcessed("/data/run1.h5"))
	assert.False(t, reloaded.IsProcessed("/data/run2.h5"))
}

func TestCacheMissingFileTreatedAsEmpty(t *testing.T) {
	root := t.TempDir()
	cache, err := Load(root)
	require.NoError(t, err)
	defer cache.Close()
	assert.False(t, cache.IsProcessed("anything.h5"))
}

func TestFingerprintChangeDetection(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "data.h5")
	writeFile(t, path, 16)

	cache, err := Load(root)
	require.NoError(t, err)
	defer cache.Close()

	sum, err := FingerprintFile(path)
	require.NoError(t, err)
	cache.RecordFingerprint(path, sum)

	changed, err := cache.IsChangedSinceProcessed(path)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.WriteFile(path, make([]byte, 32), 0o644))
	changed, err = cache.IsChangedSinceProcessed(path)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestFilterResumableReincludesChangedFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "data.h5")
	writeFile(t, path, 16)

	cache, err := Load(root)
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.MarkProcessed(path))
	sum, err := FingerprintFile(path)
	require.NoError(t, err)
	cache.RecordFingerprint(path, sum)

	files := []File{{Path: path, Size: 16}}
	assert.Empty(t, FilterResumable(files, cache), "unchanged processed file stays excluded")

	require.NoError(t, os.WriteFile(path, make([]byte, 32), 0o644))
	out := FilterResumable(files, cache)
	require.Len(t, out, 1, "changed processed file must be re-included")
	assert.Equal(t, path, out[0].Path)
}

func TestFingerprintsPersistAcrossReload(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "data.h5")
	writeFile(t, path, 16)

	cache, err := Load(root)
	require.NoError(t, err)
	sum, err := FingerprintFile(path)
	require.NoError(t, err)
	cache.RecordFingerprint(path, sum)
	require.NoError(t, cache.Close())

	reloaded, err := Load(root)
	require.NoError(t, err)
	defer reloaded.Close()

	changed, err := reloaded.IsChangedSinceProcessed(path)
	require.NoError(t, err)
	assert.False(t, changed, "fingerprint recorded before restart must still be known after reload")
}

func TestIsChangedSinceProcessedUnknownPathIsUnchanged(t *testing.T) {
	root := t.TempDir()
	cache, err := Load(root)
	require.NoError(t, err)
	defer cache.Close()

	changed, err := cache.IsChangedSinceProcessed("/never/recorded.h5")
	require.NoError(t, err)
	assert.False(t, changed)
}
