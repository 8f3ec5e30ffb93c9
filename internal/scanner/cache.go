// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package scanner

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/osprey-dp/h5-to-dp/pkg/log"
)

const (
	cacheFileName       = ".processed_cache"
	fingerprintFileName = ".processed_fingerprints"
)

// Cache is the processed-file cache from spec §3/§4.A: an append-only set of
// absolute paths persisted to <output>/.processed_cache, one per line.
//
// Each entry also carries a blake2b-256 content fingerprint of the file at
// the time it was marked processed, persisted to a sidecar
// .processed_fingerprints file (path<TAB>hex-digest per line) so it survives
// a process restart. This is a supplement beyond the plain-text cache file
// (which must stay path-only per spec §6): MarkProcessed always appends just
// the path, but IsChangedSinceProcessed lets a --resume run notice a file
// whose bytes changed underneath an unchanged path, rather than silently
// skipping it forever.
type Cache struct {
	mu          sync.Mutex
	processed   map[string]struct{}
	fingerprint map[string][32]byte
	path        string
	file        *os.File
	fpPath      string
	fpFile      *os.File
}

// Load reads the cache file at <outputDir>/.processed_cache and its
// fingerprint sidecar. A missing or unreadable cache file is treated as
// empty (spec §4.A failure modes), never a fatal error.
func Load(outputDir string) (*Cache, error) {
	path := filepath.Join(outputDir, cacheFileName)
	fpPath := filepath.Join(outputDir, fingerprintFileName)
	c := &Cache{
		processed:   map[string]struct{}{},
		fingerprint: map[string][32]byte{},
		path:        path,
		fpPath:      fpPath,
	}

	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("scanner: cache file %s unreadable, treating as empty: %v", path, err)
		}
	} else {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			c.processed[line] = struct{}{}
		}
		f.Close()
	}

	if fpf, err := os.Open(fpPath); err == nil {
		scanner := bufio.NewScanner(fpf)
		for scanner.Scan() {
			fpath, sum, ok := parseFingerprintLine(scanner.Text())
			if ok {
				c.fingerprint[fpath] = sum
			}
		}
		fpf.Close()
	} else if !os.IsNotExist(err) {
		log.Warnf("scanner: fingerprint cache %s unreadable, treating as empty: %v", fpPath, err)
	}

	out, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening cache file for append: %w", err)
	}
	c.file = out

	fpOut, err := os.OpenFile(fpPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("opening fingerprint cache for append: %w", err)
	}
	c.fpFile = fpOut

	return c, nil
}

func parseFingerprintLine(line string) (string, [32]byte, bool) {
	var zero [32]byte
	idx := strings.LastIndex(line, "\t")
	if idx < 0 {
		return "", zero, false
	}
	raw, err := hex.DecodeString(line[idx+1:])
	if err != nil || len(raw) != len(zero) {
		return "", zero, false
	}
	var sum [32]byte
	copy(sum[:], raw)
	return line[:idx], sum, true
}

// Close releases the underlying cache file handles.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.fpFile != nil {
		err = c.fpFile.Close()
	}
	if c.file != nil {
		if ferr := c.file.Close(); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}

// IsProcessed reports O(1) set membership.
func (c *Cache) IsProcessed(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.processed[path]
	return ok
}

// MarkProcessed inserts path and appends one line to the cache file,
// flushing immediately so a crash mid-run never loses a prior success (spec
// §4.A).
func (c *Cache) MarkProcessed(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.processed[path]; ok {
		return nil
	}
	c.processed[path] = struct{}{}

	if c.file == nil {
		return nil
	}
	if _, err := fmt.Fprintln(c.file, path); err != nil {
		return err
	}
	return c.file.Sync()
}

// RecordFingerprint stores the content fingerprint observed for path at the
// moment it was processed, for later change detection, and persists it to
// the fingerprint sidecar so it survives a process restart.
func (c *Cache) RecordFingerprint(path string, sum [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fingerprint[path] = sum

	if c.fpFile == nil {
		return
	}
	if _, err := fmt.Fprintf(c.fpFile, "%s\t%x\n", path, sum); err != nil {
		log.Warnf("scanner: writing fingerprint for %s: %v", path, err)
		return
	}
	c.fpFile.Sync()
}

// IsChangedSinceProcessed reports whether path's current on-disk content
// fingerprint differs from the one recorded when it was last marked
// processed. A file with no recorded fingerprint (pre-dates this feature, or
// was never processed) is reported unchanged so resume behavior degrades to
// the plain path-based rule in that case.
func (c *Cache) IsChangedSinceProcessed(path string) (bool, error) {
	c.mu.Lock()
	want, ok := c.fingerprint[path]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}

	got, err := FingerprintFile(path)
	if err != nil {
		return false, err
	}
	return got != want, nil
}

// FingerprintFile computes a blake2b-256 digest of a file's contents.
func FingerprintFile(path string) ([32]byte, error) {
	var zero [32]byte
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return zero, err
	}
	if _, err := io.Copy(h, f); err != nil {
		return zero, err
	}

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
