// Пакет ledger — журнал истории загрузок документов.
//
// In-memory упорядоченный список записей (новые первые) поверх
// подключаемого Store. Каждая мутация (Add, Remove, Clear) синхронно
// записывает новое состояние в хранилище до возврата из вызова
// (write-through): отдельного шага "сохранить" у вызывающего кода нет.
//
// Мутации сериализуются внутренним mutex; блокировка не удерживается
// дольше одного вызова Store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/arturkryukov/docvault/internal/domain/model"
)

// ErrUnavailable — хранилище журнала целиком недоступно или нечитаемо.
// Отдельные повреждённые записи этой ошибкой не являются: они
// пропускаются при загрузке.
var ErrUnavailable = errors.New("хранилище журнала недоступно")

// Store — контракт персистентного хранилища журнала.
// Load/Save оперируют полным снимком списка записей.
type Store interface {
	// Load читает все записи журнала (в порядке: новые первые).
	// Повреждённые отдельные записи пропускаются реализацией.
	Load(ctx context.Context) ([]model.HistoryRecord, error)

	// Save записывает полный снимок журнала.
	Save(ctx context.Context, records []model.HistoryRecord) error
}

// Ledger — журнал истории загрузок.
type Ledger struct {
	mu      sync.Mutex
	records []model.HistoryRecord
	store   Store
	loaded  bool
	logger  *slog.Logger
}

// New создаёт журнал поверх указанного хранилища.
// Для заполнения вызовите Load.
func New(store Store, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger.With(slog.String("component", "ledger")),
	}
}

// Load восстанавливает журнал из хранилища.
// При полной недоступности хранилища возвращает ErrUnavailable,
// журнал при этом остаётся пустым и работоспособным.
func (l *Ledger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.store.Load(ctx)
	if err != nil {
		l.records = nil
		l.loaded = false
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	l.records = records
	l.loaded = true

	l.logger.Info("Журнал истории загружен",
		slog.Int("records", len(l.records)),
	)
	return nil
}

// Loaded возвращает true, если журнал успешно загружен из хранилища.
func (l *Ledger) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Add вставляет запись в начало журнала (новые первые) и сразу
// сохраняет новое состояние. При ошибке сохранения запись
// откатывается из памяти: журнал и хранилище не расходятся.
func (l *Ledger) Add(ctx context.Context, rec model.HistoryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	updated := make([]model.HistoryRecord, 0, len(l.records)+1)
	updated = append(updated, rec)
	updated = append(updated, l.records...)

	if err := l.store.Save(ctx, updated); err != nil {
		return fmt.Errorf("ошибка сохранения журнала: %w", err)
	}

	l.records = updated
	return nil
}

// Remove удаляет запись с указанным storage path и сохраняет журнал.
// Отсутствие записи — не ошибка (no-op без обращения к хранилищу).
func (l *Ledger) Remove(ctx context.Context, storagePath string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := -1
	for i := range l.records {
		if l.records[i].StoragePath == storagePath {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}

	updated := make([]model.HistoryRecord, 0, len(l.records)-1)
	updated = append(updated, l.records[:idx]...)
	updated = append(updated, l.records[idx+1:]...)

	if err := l.store.Save(ctx, updated); err != nil {
		return fmt.Errorf("ошибка сохранения журнала: %w", err)
	}

	l.records = updated
	return nil
}

// Clear очищает журнал и сохраняет пустое состояние.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Save(ctx, nil); err != nil {
		return fmt.Errorf("ошибка сохранения журнала: %w", err)
	}

	l.records = nil
	return nil
}

// List возвращает снимок всех записей (новые первые).
// Снимок — копия: внешние изменения не затрагивают журнал.
func (l *Ledger) List() []model.HistoryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.HistoryRecord, len(l.records))
	copy(out, l.records)
	return out
}

// ListByIdentity возвращает снимок записей, принадлежащих identity
// (по префиксу storage path — ключи всегда вида {identity}/...).
func (l *Ledger) ListByIdentity(identity string) []model.HistoryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := identity + "/"
	var out []model.HistoryRecord
	for i := range l.records {
		if strings.HasPrefix(l.records[i].StoragePath, prefix) {
			out = append(out, l.records[i])
		}
	}
	return out
}

// FindByFingerprint ищет запись с указанным отпечатком содержимого
// в пространстве имён identity. Используется для дедупликации:
// отпечаток не уникален между пользователями.
func (l *Ledger) FindByFingerprint(identity, fp string) (model.HistoryRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if fp == "" {
		return model.HistoryRecord{}, false
	}

	prefix := identity + "/"
	for i := range l.records {
		if l.records[i].Fingerprint == fp && strings.HasPrefix(l.records[i].StoragePath, prefix) {
			return l.records[i], true
		}
	}
	return model.HistoryRecord{}, false
}

// FindByPath ищет запись по storage path.
func (l *Ledger) FindByPath(storagePath string) (model.HistoryRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.records {
		if l.records[i].StoragePath == storagePath {
			return l.records[i], true
		}
	}
	return model.HistoryRecord{}, false
}

// Len возвращает количество записей в журнале.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
