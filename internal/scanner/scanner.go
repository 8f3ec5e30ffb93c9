// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scanner implements component A: recursive discovery of candidate
// HDF5 files under a root directory, sorted for good load balance, filtered
// against the processed-file cache in resume mode.
package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/osprey-dp/h5-to-dp/pkg/log"
)

const h5Extension = ".h5"

// File is one scan result: an absolute path plus its size, used for the
// ascending-by-size ordering spec §4.A requires.
type File struct {
	Path string
	Size int64
}

// Scan recursively enumerates every *.h5 file under root, returning them
// sorted ascending by size. An unreadable subdirectory is skipped with a
// warning rather than failing the whole scan; a missing root fails fast.
func Scan(root string) ([]File, error) {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		if err == nil {
			err = os.ErrInvalid
		}
		return nil, err
	}

	var files []File
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Warnf("scanner: skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), h5Extension) {
			return nil
		}
		abs, aerr := filepath.Abs(path)
		if aerr != nil {
			abs = path
		}
		info, serr := d.Info()
		if serr != nil {
			log.Warnf("scanner: stat %s: %v", path, serr)
			return nil
		}
		files = append(files, File{Path: abs, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Size < files[j].Size })
	return files, nil
}

// FilterResumable drops files already marked processed in cache, preserving
// the size-ascending order Scan produced. A file marked processed whose
// content fingerprint has since changed is kept rather than dropped, so a
// --resume run still picks up a path that was overwritten after its last
// successful ingest.
func FilterResumable(files []File, cache *Cache) []File {
	out := files[:0:0]
	for _, f := range files {
		if !cache.IsProcessed(f.Path) {
			out = append(out, f)
			continue
		}
		changed, err := cache.IsChangedSinceProcessed(f.Path)
		if err != nil {
			log.Warnf("scanner: fingerprinting %s: %v", f.Path, err)
			continue
		}
		if changed {
			out = append(out, f)
		}
	}
	return out
}
