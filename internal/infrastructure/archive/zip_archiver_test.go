package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"

	"apigen/internal/domain/entity"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer r.Close()

	out := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		out[f.Name] = string(data)
	}
	return out
}

func TestArchive(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	files := map[string]string{
		"pom.xml":                "<project/>",
		"application.properties": "server.port=8080",
		"src/main/java/com/example/model/Book.java": "class Book {}",
	}
	writeTree(t, src, files)

	out := filepath.Join(t.TempDir(), "archives", "job.zip")
	res, err := NewZipArchiver().Archive(context.Background(), src, out)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if res.Entries != 3 {
		t.Fatalf("entries = %d", res.Entries)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() != res.Size {
		t.Fatalf("archive size = %v (%v), result says %d", info, err, res.Size)
	}
	if diff := cmp.Diff(files, readZip(t, out)); diff != "" {
		t.Fatalf("archive content mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(out + ".partial"); !os.IsNotExist(err) {
		t.Fatal("partial file left behind")
	}
}

func TestArchiveIsReproducible(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a", "b/c.txt": "c"})

	dir := t.TempDir()
	a := NewZipArchiver()
	if _, err := a.Archive(context.Background(), src, filepath.Join(dir, "1.zip")); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Archive(context.Background(), src, filepath.Join(dir, "2.zip")); err != nil {
		t.Fatal(err)
	}
	one, _ := os.ReadFile(filepath.Join(dir, "1.zip"))
	two, _ := os.ReadFile(filepath.Join(dir, "2.zip"))
	if !bytes.Equal(one, two) {
		t.Fatal("identical trees produced different archives")
	}
}

func TestArchiveMissingSource(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "job.zip")
	_, err := NewZipArchiver().Archive(context.Background(), filepath.Join(t.TempDir(), "missing"), out)
	if !errors.Is(err, entity.ErrFilesystem) {
		t.Fatalf("error = %v, want ErrFilesystem", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("archive created for missing source")
	}
}

func TestArchiveCanceled(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := filepath.Join(t.TempDir(), "job.zip")
	_, err := NewZipArchiver().Archive(ctx, src, out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	for _, p := range []string{out, out + ".partial"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("%s left behind", p)
		}
	}
}
