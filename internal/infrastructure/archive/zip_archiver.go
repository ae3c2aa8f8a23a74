package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"

	"apigen/internal/domain/entity"
	"apigen/internal/infrastructure/metrics"
)

// Result describes a finished archive.
type Result struct {
	Entries int
	Size    int64
}

// ZipArchiver packs a directory tree into a single zip file.
type ZipArchiver struct {
	modTime time.Time
}

// NewZipArchiver stamps every entry with the same time so that identical
// trees produce identical archives.
func NewZipArchiver() *ZipArchiver {
	return &ZipArchiver{modTime: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Archive writes every regular file under srcDir to outPath. Entry names are
// slash-separated paths relative to srcDir, in sorted order. The archive is
// built next to outPath and renamed into place, so outPath either holds a
// complete archive or does not exist.
func (a *ZipArchiver) Archive(ctx context.Context, srcDir, outPath string) (Result, error) {
	files, err := listFiles(srcDir)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("%w: create archive directory: %w", entity.ErrFilesystem, err)
	}
	partial := outPath + ".partial"
	f, err := os.OpenFile(partial, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("%w: create archive: %w", entity.ErrFilesystem, err)
	}

	done := false
	defer func() {
		if !done {
			_ = f.Close()
			_ = os.Remove(partial)
		}
	}()

	zw := zip.NewWriter(f)
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := a.addFile(zw, srcDir, rel); err != nil {
			return Result{}, err
		}
	}
	if err := zw.Close(); err != nil {
		return Result{}, fmt.Errorf("%w: finish archive: %w", entity.ErrFilesystem, err)
	}
	if err := f.Sync(); err != nil {
		return Result{}, fmt.Errorf("%w: sync archive: %w", entity.ErrFilesystem, err)
	}
	info, err := f.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("%w: stat archive: %w", entity.ErrFilesystem, err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("%w: close archive: %w", entity.ErrFilesystem, err)
	}
	if err := os.Rename(partial, outPath); err != nil {
		_ = os.Remove(partial)
		done = true
		return Result{}, fmt.Errorf("%w: move archive into place: %w", entity.ErrFilesystem, err)
	}
	done = true

	metrics.ObserveArchiveBytes(info.Size())
	return Result{Entries: len(files), Size: info.Size()}, nil
}

func (a *ZipArchiver) addFile(zw *zip.Writer, srcDir, rel string) error {
	src, err := os.Open(filepath.Join(srcDir, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", entity.ErrFilesystem, rel, err)
	}
	defer src.Close()

	header := &zip.FileHeader{
		Name:     rel,
		Method:   zip.Deflate,
		Modified: a.modTime,
	}
	header.SetMode(0o644)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("%w: add entry %s: %w", entity.ErrFilesystem, rel, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("%w: read %s: %w", entity.ErrFilesystem, rel, err)
	}
	return nil
}

// listFiles returns the slash-separated relative paths of all regular files
// under root, sorted.
func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %w", entity.ErrFilesystem, root, err)
	}
	sort.Strings(files)
	return files, nil
}
