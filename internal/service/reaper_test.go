package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/arturkryukov/docvault/internal/domain/model"
	"github.com/arturkryukov/docvault/internal/storage/ledger"
)

func addRecord(t *testing.T, ldg *ledger.Ledger, blobs *fakeBlobStore, path string, option model.ExpireOption, createdAt int64) {
	t.Helper()
	ctx := context.Background()

	if _, err := blobs.Put(ctx, path, strings.NewReader("данные")); err != nil {
		t.Fatalf("Put: неожиданная ошибка %v", err)
	}
	rec := model.HistoryRecord{
		DisplayName:  "doc.pdf",
		StoragePath:  path,
		ExpireOption: option,
		CreatedAt:    createdAt,
	}
	if err := ldg.Add(ctx, rec); err != nil {
		t.Fatalf("Add: неожиданная ошибка %v", err)
	}
}

func TestRunOnceReapsExpired(t *testing.T) {
	ctx := context.Background()
	blobs := newFakeBlobStore()
	ldg := newTestLedger(t)

	now := model.NowMillis()
	longAgo := now - 2*time.Hour.Milliseconds()

	addRecord(t, ldg, blobs, "alice/expired.pdf", model.ExpireOneHour, longAgo)
	addRecord(t, ldg, blobs, "alice/fresh.pdf", model.ExpireOneHour, now)
	addRecord(t, ldg, blobs, "alice/forever.pdf", model.ExpirePermanent, longAgo)

	r := NewReaper(blobs, ldg, time.Hour, "", testLogger())
	result := r.RunOnce(ctx)

	if result.Reaped != 1 {
		t.Errorf("Reaped: хотели 1, получили %d", result.Reaped)
	}
	if result.Errors != 0 {
		t.Errorf("Errors: хотели 0, получили %d", result.Errors)
	}

	// Просроченный удалён и из хранилища, и из журнала
	if ok, _ := blobs.Exists(ctx, "alice/expired.pdf"); ok {
		t.Errorf("просроченный объект остался в хранилище")
	}
	if _, ok := ldg.FindByPath("alice/expired.pdf"); ok {
		t.Errorf("просроченная запись осталась в журнале")
	}

	// Свежий и permanent не тронуты
	for _, path := range []string{"alice/fresh.pdf", "alice/forever.pdf"} {
		if ok, _ := blobs.Exists(ctx, path); !ok {
			t.Errorf("объект %s удалён ошибочно", path)
		}
		if _, ok := ldg.FindByPath(path); !ok {
			t.Errorf("запись %s удалена ошибочно", path)
		}
	}
}

// Отказ удаления объекта оставляет запись журнала: её доберёт
// следующий проход. Запись не удаляется раньше объекта.
func TestRunOnceKeepsRecordOnDeleteFailure(t *testing.T) {
	ctx := context.Background()
	blobs := newFakeBlobStore()
	ldg := newTestLedger(t)

	longAgo := model.NowMillis() - 2*time.Hour.Milliseconds()
	addRecord(t, ldg, blobs, "alice/expired.pdf", model.ExpireOneHour, longAgo)

	blobs.failDelete = true
	r := NewReaper(blobs, ldg, time.Hour, "", testLogger())
	result := r.RunOnce(ctx)

	if result.Reaped != 0 {
		t.Errorf("Reaped при отказе удаления: хотели 0, получили %d", result.Reaped)
	}
	if result.Errors != 1 {
		t.Errorf("Errors: хотели 1, получили %d", result.Errors)
	}
	if _, ok := ldg.FindByPath("alice/expired.pdf"); !ok {
		t.Errorf("запись удалена раньше объекта")
	}

	// После восстановления хранилища следующий проход добирает запись
	blobs.failDelete = false
	result = r.RunOnce(ctx)
	if result.Reaped != 1 {
		t.Errorf("повторный проход: хотели Reaped=1, получили %d", result.Reaped)
	}
	if _, ok := ldg.FindByPath("alice/expired.pdf"); ok {
		t.Errorf("запись осталась после успешного повторного прохода")
	}
}

func TestRunOnceEmptyLedger(t *testing.T) {
	r := NewReaper(newFakeBlobStore(), newTestLedger(t), time.Hour, "", testLogger())

	result := r.RunOnce(context.Background())
	if result.Reaped != 0 || result.Errors != 0 {
		t.Errorf("проход по пустому журналу: хотели 0/0, получили %d/%d", result.Reaped, result.Errors)
	}
}

// Start выполняет немедленный проход при запуске.
func TestStartImmediateSweep(t *testing.T) {
	ctx := context.Background()
	blobs := newFakeBlobStore()
	ldg := newTestLedger(t)

	longAgo := model.NowMillis() - 2*time.Hour.Milliseconds()
	addRecord(t, ldg, blobs, "alice/expired.pdf", model.ExpireOneHour, longAgo)

	r := NewReaper(blobs, ldg, time.Hour, "", testLogger())
	r.Start(ctx)
	defer r.Stop()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := ldg.FindByPath("alice/expired.pdf"); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("немедленный проход не удалил просроченную запись")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
