// Package staging is the local source gateway over the NFS staging
// directory: it enumerates candidate backup sets, archives them for
// processing, and removes them once the off-site copy is confirmed.
package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dmitrijs2005/offsitebkp/internal/backup"
	"github.com/dmitrijs2005/offsitebkp/internal/common"
	"github.com/dmitrijs2005/offsitebkp/internal/logging"
)

// DefaultMinSetFiles is the minimum number of files a staged backup
// directory must contain to count as a complete set.
const DefaultMinSetFiles = 3

// Source enumerates and maintains staged backup sets in one directory.
type Source struct {
	dir         string
	minSetFiles int
	log         logging.Logger
}

func New(dir string, minSetFiles int, log logging.Logger) *Source {
	if minSetFiles <= 0 {
		minSetFiles = DefaultMinSetFiles
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Source{dir: dir, minSetFiles: minSetFiles, log: log}
}

// Dir returns the staging directory this source reads from.
func (s *Source) Dir() string { return s.dir }

// Enumerate returns the staged backup sets found in the staging directory.
// A set is either a subdirectory with at least minSetFiles entries, or a
// regular non-hidden file. Incomplete directories are skipped with a warning.
func (s *Source) Enumerate(ctx context.Context) ([]backup.BackupSet, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading staging directory %s: %v", common.ErrIO, s.dir, err)
	}

	var sets []backup.BackupSet

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		full := filepath.Join(s.dir, name)
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("%w: stat %s: %v", common.ErrIO, full, err)
		}

		size := info.Size()
		if entry.IsDir() {
			count, total, err := dirStats(full)
			if err != nil {
				return nil, err
			}
			if count < s.minSetFiles {
				s.log.Warn(ctx, "skipping incomplete backup set",
					"path", full, "files", count, "required", s.minSetFiles)
				continue
			}
			size = total
		}

		sets = append(sets, backup.BackupSet{
			Identifier: name,
			Tag:        name,
			LocalPath:  full,
			SizeBytes:  size,
			CreatedAt:  info.ModTime(),
		})
	}

	return sets, nil
}

func dirStats(dir string) (files int, totalBytes int64, err error) {
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		totalBytes += info.Size()
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: walking %s: %v", common.ErrIO, dir, err)
	}
	return files, totalBytes, nil
}

// Remove deletes a staged set (directory or file). Called by the
// orchestrator only after the off-site copy has been verified.
func (s *Source) Remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("%w: removing %s: %v", common.ErrIO, path, err)
	}
	return nil
}

// RetainNewest keeps the n most recently modified staged sets and removes
// the rest. It returns the identifiers of the sets it removed. Removal is
// best-effort per set; failures are joined into the returned error.
func (s *Source) RetainNewest(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: onsite retention count must be positive, got %d", common.ErrValidation, n)
	}

	sets, err := s.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	if len(sets) <= n {
		return nil, nil
	}

	sort.SliceStable(sets, func(i, j int) bool {
		if !sets[i].CreatedAt.Equal(sets[j].CreatedAt) {
			return sets[i].CreatedAt.After(sets[j].CreatedAt)
		}
		return sets[i].Identifier > sets[j].Identifier
	})

	var removed []string
	var errs []error
	for _, set := range sets[n:] {
		if err := s.Remove(set.LocalPath); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, set.Identifier)
	}

	return removed, errors.Join(errs...)
}
