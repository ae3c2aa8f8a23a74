package filesystem

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"apigen/internal/domain/entity"
	"apigen/internal/infrastructure/metrics"
)

// WorkspaceRepository hands out one private directory per generation job
// under basePath and names archive files under archiveDir.
type WorkspaceRepository struct {
	basePath   string
	archiveDir string
	logger     *slog.Logger
}

func NewWorkspaceRepository(basePath, archiveDir string, logger *slog.Logger) (*WorkspaceRepository, error) {
	for _, dir := range []string{basePath, archiveDir} {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceRepository{
		basePath:   basePath,
		archiveDir: archiveDir,
		logger:     logger,
	}, nil
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(path, 0o755); mkErr != nil {
			return fmt.Errorf("%w: create directory %s: %w", entity.ErrFilesystem, path, mkErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: check directory %s: %w", entity.ErrFilesystem, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: path %s exists but is not a directory", entity.ErrFilesystem, path)
	}
	return nil
}

func (r *WorkspaceRepository) BasePath() string {
	return r.basePath
}

// ArchivePath is where the archive of jobID is written.
func (r *WorkspaceRepository) ArchivePath(jobID string) string {
	return filepath.Join(r.archiveDir, jobID+".zip")
}

// Create allocates the workspace of jobID. The directory must not exist yet:
// an existing one belongs to another job and is never reused.
func (r *WorkspaceRepository) Create(jobID string) (*Workspace, error) {
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || !filepath.IsLocal(jobID) {
		return nil, fmt.Errorf("%w: invalid workspace id %q", entity.ErrFilesystem, jobID)
	}
	root := filepath.Join(r.basePath, jobID)
	if err := os.Mkdir(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create workspace %s: %w", entity.ErrFilesystem, jobID, err)
	}
	return &Workspace{ID: jobID, Root: root, logger: r.logger}, nil
}

// Sweep removes workspaces and archives last modified before the cutoff.
// They are leftovers of a process that stopped mid-job.
func (r *WorkspaceRepository) Sweep(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, dir := range []string{r.basePath, r.archiveDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			r.logger.Warn("sweep: read dir failed", "dir", dir, "err", err)
			continue
		}
		for _, e := range entries {
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if e.IsDir() && (dir == r.archiveDir || path == filepath.Clean(r.archiveDir)) {
				continue
			}
			if e.IsDir() {
				(&Workspace{ID: e.Name(), Root: path, logger: r.logger}).Remove()
			} else if err := os.Remove(path); err != nil {
				r.logger.Warn("sweep: remove failed", "path", path, "err", err)
				continue
			}
			removed++
		}
	}
	return removed
}

type Workspace struct {
	ID     string
	Root   string
	logger *slog.Logger
}

// WriteSections writes every present section to its layout path, in
// canonical section order, and returns what was written. Absent sections
// produce no file.
func (w *Workspace) WriteSections(sections entity.SectionSet, layout entity.FileLayout) ([]*entity.GeneratedFile, error) {
	now := time.Now().UTC()
	files := make([]*entity.GeneratedFile, 0, len(sections))

	for _, id := range sections.Present() {
		rel, ok := layout[id]
		if !ok || rel == "" {
			return nil, fmt.Errorf("%w: layout has no path for section %s", entity.ErrFilesystem, id)
		}
		rel = filepath.Clean(filepath.FromSlash(rel))
		if !filepath.IsLocal(rel) {
			return nil, fmt.Errorf("%w: layout path %q escapes the workspace", entity.ErrFilesystem, rel)
		}

		path := filepath.Join(w.Root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create directory for %s: %w", entity.ErrFilesystem, rel, err)
		}
		content := sections[id]
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("%w: write file %s: %w", entity.ErrFilesystem, rel, err)
		}

		files = append(files, &entity.GeneratedFile{
			JobID:     w.ID,
			Section:   id,
			Path:      filepath.ToSlash(rel),
			Content:   content,
			CreatedAt: now,
		})
	}
	return files, nil
}

// Remove deletes the workspace, children before parents. It never fails:
// anything that cannot be removed is logged and counted.
func (w *Workspace) Remove() {
	var paths []string
	err := filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if !os.IsNotExist(err) {
				w.logger.Warn("workspace cleanup: walk failed", "job_id", w.ID, "path", path, "err", err)
			}
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		w.logger.Warn("workspace cleanup: walk failed", "job_id", w.ID, "err", err)
	}

	sort.Slice(paths, func(i, j int) bool {
		di, dj := depth(paths[i]), depth(paths[j])
		if di != dj {
			return di > dj
		}
		return paths[i] > paths[j]
	})

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			metrics.IncCleanupFailure()
			w.logger.Warn("workspace cleanup: remove failed", "job_id", w.ID, "path", p, "err", err)
		}
	}
}

func depth(path string) int {
	return strings.Count(filepath.ToSlash(path), "/")
}
