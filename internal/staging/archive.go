package staging

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/dmitrijs2005/offsitebkp/internal/backup"
	"github.com/dmitrijs2005/offsitebkp/internal/common"
)

// ArchiveSuffix is appended to a set identifier to name its archive.
const ArchiveSuffix = ".tar.gz"

// Archive packs a staged set into destDir/<identifier>.tar.gz and returns
// the archive path. Directory sets are walked recursively with paths stored
// relative to the set root; a plain-file set becomes a single-entry archive.
func (s *Source) Archive(ctx context.Context, set backup.BackupSet, destDir string) (string, error) {
	out := filepath.Join(destDir, set.Identifier+ArchiveSuffix)

	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("%w: creating archive %s: %v", common.ErrIO, out, err)
	}

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	err = s.writeEntries(ctx, tw, set)
	if cerr := closeAll(tw, gz, f); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return "", err
	}

	return out, nil
}

func (s *Source) writeEntries(ctx context.Context, tw *tar.Writer, set backup.BackupSet) error {
	info, err := os.Stat(set.LocalPath)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", common.ErrIO, set.LocalPath, err)
	}

	if !info.IsDir() {
		return addFile(tw, set.LocalPath, filepath.Base(set.LocalPath), info)
	}

	root := set.LocalPath
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: walking %s: %v", common.ErrIO, path, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrIO, err)
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("%w: stat %s: %v", common.ErrIO, path, err)
		}

		return addFile(tw, path, filepath.ToSlash(filepath.Join(set.Identifier, rel)), info)
	})
}

func addFile(tw *tar.Writer, path, name string, info os.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrIO, err)
	}
	hdr.Name = name

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("%w: %v", common.ErrIO, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", common.ErrIO, path, err)
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("%w: archiving %s: %v", common.ErrIO, path, err)
	}
	return nil
}

func closeAll(closers ...io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = fmt.Errorf("%w: %v", common.ErrIO, err)
		}
	}
	return first
}

// Extract unpacks a tar.gz archive into destDir and returns the path of the
// extracted set. On failure any partially extracted content for the set is
// removed so no corrupt artifacts are left behind.
func Extract(ctx context.Context, archivePath, destDir string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("%w: opening archive %s: %v", common.ErrIO, archivePath, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: reading archive %s: %v", common.ErrIO, archivePath, err)
	}
	defer gz.Close()

	setName := strings.TrimSuffix(filepath.Base(archivePath), ArchiveSuffix)
	target := filepath.Join(destDir, setName)

	if err := extractAll(ctx, tar.NewReader(gz), destDir); err != nil {
		os.RemoveAll(target)
		return "", err
	}

	return target, nil
}

func extractAll(ctx context.Context, tr *tar.Reader, destDir string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: corrupt archive: %v", common.ErrIO, err)
		}

		// Reject entries escaping the destination.
		name := filepath.FromSlash(hdr.Name)
		if filepath.IsAbs(name) || strings.Contains(name, "..") {
			return fmt.Errorf("%w: archive entry %q has an unsafe path", common.ErrIO, hdr.Name)
		}

		path := filepath.Join(destDir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0o750); err != nil {
				return fmt.Errorf("%w: %v", common.ErrIO, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return fmt.Errorf("%w: %v", common.ErrIO, err)
			}
			if err := writeRegular(path, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			// Symlinks and special files do not occur in device backup sets.
			continue
		}
	}
}

func writeRegular(path string, r io.Reader, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", common.ErrIO, path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("%w: extracting %s: %v", common.ErrIO, path, err)
	}
	return nil
}
