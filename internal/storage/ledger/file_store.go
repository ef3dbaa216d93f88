// file_store.go — файловый backend журнала: один JSON-документ
// под известным путём. Аналог локального key-value хранилища
// настроек мобильного клиента. Запись атомарна: temp → fsync → rename.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/arturkryukov/docvault/internal/domain/model"
)

// FileStore — журнал в одном JSON-файле.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore создаёт файловый backend журнала.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With(slog.String("component", "ledger_file")),
	}
}

// Load читает снимок журнала из файла.
// Отсутствие файла — пустой журнал, не ошибка.
func (fs *FileStore) Load(ctx context.Context) ([]model.HistoryRecord, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения файла журнала %s: %w", fs.path, err)
	}

	return decodeRecords(data, fs.logger)
}

// Save атомарно записывает снимок журнала в файл.
// Паттерн: JSON → temp файл → fsync → atomic rename.
func (fs *FileStore) Save(ctx context.Context, records []model.HistoryRecord) error {
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	tmpPath := fs.path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fs.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// Проверка на этапе компиляции
var _ Store = (*FileStore)(nil)
