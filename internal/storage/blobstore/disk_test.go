package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	ds, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: неожиданная ошибка %v", err)
	}
	return ds
}

func TestPutAndOpen(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	content := "содержимое документа"
	size, err := ds.Put(ctx, "alice/doc.pdf", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Put: неожиданная ошибка %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("Put size: хотели %d, получили %d", len(content), size)
	}

	rc, err := ds.Open(ctx, "alice/doc.pdf")
	if err != nil {
		t.Fatalf("Open: неожиданная ошибка %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: неожиданная ошибка %v", err)
	}
	if string(data) != content {
		t.Errorf("содержимое: хотели %q, получили %q", content, string(data))
	}
}

func TestOpenNotFound(t *testing.T) {
	ds := newTestStore(t)

	_, err := ds.Open(context.Background(), "alice/missing.pdf")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Open отсутствующего объекта: хотели ErrNotFound, получили %v", err)
	}
}

// Удаление идемпотентно: отсутствующий объект — не ошибка.
func TestDeleteIdempotent(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	if _, err := ds.Put(ctx, "alice/doc.pdf", strings.NewReader("x")); err != nil {
		t.Fatalf("Put: неожиданная ошибка %v", err)
	}

	if err := ds.Delete(ctx, "alice/doc.pdf"); err != nil {
		t.Errorf("Delete существующего: неожиданная ошибка %v", err)
	}
	if err := ds.Delete(ctx, "alice/doc.pdf"); err != nil {
		t.Errorf("повторный Delete: хотели nil, получили %v", err)
	}
	if err := ds.Delete(ctx, "alice/never-existed.pdf"); err != nil {
		t.Errorf("Delete несуществующего: хотели nil, получили %v", err)
	}
}

func TestExists(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	ok, err := ds.Exists(ctx, "alice/doc.pdf")
	if err != nil {
		t.Fatalf("Exists: неожиданная ошибка %v", err)
	}
	if ok {
		t.Errorf("Exists до загрузки: хотели false, получили true")
	}

	if _, err := ds.Put(ctx, "alice/doc.pdf", strings.NewReader("x")); err != nil {
		t.Fatalf("Put: неожиданная ошибка %v", err)
	}

	ok, err = ds.Exists(ctx, "alice/doc.pdf")
	if err != nil {
		t.Fatalf("Exists: неожиданная ошибка %v", err)
	}
	if !ok {
		t.Errorf("Exists после загрузки: хотели true, получили false")
	}
}

// Ключ не может выйти за пределы директории данных.
func TestRejectsPathTraversal(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "a/../../escape", "/etc/passwd"} {
		if _, err := ds.Put(ctx, key, strings.NewReader("x")); err == nil {
			t.Errorf("Put(%q): хотели ошибку, получили nil", key)
		}
		if _, err := ds.Open(ctx, key); err == nil {
			t.Errorf("Open(%q): хотели ошибку, получили nil", key)
		}
	}
}

// Отмена контекста до публикации не оставляет ни объекта, ни temp файла.
func TestPutCancelledContext(t *testing.T) {
	ds := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ds.Put(ctx, "alice/doc.pdf", strings.NewReader("x")); err == nil {
		t.Fatalf("Put с отменённым контекстом: хотели ошибку, получили nil")
	}

	ok, err := ds.Exists(context.Background(), "alice/doc.pdf")
	if err != nil {
		t.Fatalf("Exists: неожиданная ошибка %v", err)
	}
	if ok {
		t.Errorf("объект опубликован несмотря на отмену контекста")
	}

	entries, err := os.ReadDir(filepath.Join(ds.DataDir(), "alice"))
	if err == nil && len(entries) != 0 {
		t.Errorf("остались файлы после отменённой загрузки: %d", len(entries))
	}
}
