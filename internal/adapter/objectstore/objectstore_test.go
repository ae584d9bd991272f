package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

type fakeFiles struct {
	objects    map[string][]byte
	existsCall int
	writeCall  int
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{objects: make(map[string][]byte)}
}

func (f *fakeFiles) Read(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := f.objects[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeFiles) Write(_ context.Context, path string) (io.WriteCloser, error) {
	f.writeCall++
	return &fakeWriter{path: path, store: f}, nil
}

func (f *fakeFiles) Delete(_ context.Context, path string) error {
	delete(f.objects, path)
	return nil
}

func (f *fakeFiles) Exists(_ context.Context, path string) (bool, error) {
	f.existsCall++
	_, ok := f.objects[path]
	return ok, nil
}

type fakeWriter struct {
	path  string
	store *fakeFiles
	buf   bytes.Buffer
}

func (w *fakeWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *fakeWriter) Close() error {
	w.store.objects[w.path] = w.buf.Bytes()
	return nil
}

type fakePresigner struct {
	calls []string
}

func (p *fakePresigner) PresignGet(_ context.Context, key string, expiresSeconds int) (string, error) {
	p.calls = append(p.calls, key)
	return fmt.Sprintf("https://example.test/%s?expires=%d", key, expiresSeconds), nil
}

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUploadNewObjectWrites(t *testing.T) {
	files := newFakeFiles()
	presigner := &fakePresigner{}
	store := New(files, presigner)

	path := writeTempFile(t, "final.mp4", []byte("video bytes"))
	url, err := store.Upload(context.Background(), path, "episodes/ep01", false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if files.writeCall != 1 {
		t.Fatalf("expected one write, got %d", files.writeCall)
	}
	if len(presigner.calls) != 1 {
		t.Fatalf("expected one presign call, got %d", len(presigner.calls))
	}
	if url == "" {
		t.Fatal("expected non-empty presigned URL")
	}
}

func TestUploadSkipsWhenKeyExistsAndNotOverwrite(t *testing.T) {
	files := newFakeFiles()
	presigner := &fakePresigner{}
	store := New(files, presigner)

	path := writeTempFile(t, "final.mp4", []byte("video bytes"))
	if _, err := store.Upload(context.Background(), path, "episodes/ep01", false, 0); err != nil {
		t.Fatal(err)
	}
	if files.writeCall != 1 {
		t.Fatalf("expected exactly one write from first upload, got %d", files.writeCall)
	}

	if _, err := store.Upload(context.Background(), path, "episodes/ep01", false, 0); err != nil {
		t.Fatal(err)
	}
	if files.writeCall != 1 {
		t.Fatalf("expected second upload to skip write, got %d writes", files.writeCall)
	}
}

func TestUploadOverwriteAlwaysWrites(t *testing.T) {
	files := newFakeFiles()
	presigner := &fakePresigner{}
	store := New(files, presigner)

	path := writeTempFile(t, "final.mp4", []byte("video bytes"))
	if _, err := store.Upload(context.Background(), path, "episodes/ep01", true, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upload(context.Background(), path, "episodes/ep01", true, 0); err != nil {
		t.Fatal(err)
	}
	if files.writeCall != 2 {
		t.Fatalf("expected overwrite to write every time, got %d writes", files.writeCall)
	}
}

func TestObjectKeyDerivesFromContentHashAndPrefix(t *testing.T) {
	path := writeTempFile(t, "episode.mp4", []byte("same content"))
	key, err := objectKey(path, "out")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Ext(key) != ".mp4" {
		t.Fatalf("expected key to keep source suffix, got %s", key)
	}
	if key[:4] != "out/" {
		t.Fatalf("expected prefix to lead the key, got %s", key)
	}
}

func TestObjectKeyFallsBackToParentDirWithoutPrefix(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "episodes", "ep01")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(sub, "final.mp4")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	key, err := objectKey(path, "")
	if err != nil {
		t.Fatal(err)
	}
	want := "ep01/final-"
	if len(key) < len(want) || key[:len(want)] != want {
		t.Fatalf("expected key to start with %q, got %s", want, key)
	}
}
