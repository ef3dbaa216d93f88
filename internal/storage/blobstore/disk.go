// disk.go — дисковая реализация BlobStore.
// Запись атомарна: temp файл → fsync → rename.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore — blob-хранилище в локальной директории.
// Ключи вида {identity}/{uuid}{ext} отображаются в поддиректории.
type DiskStore struct {
	// dataDir — корневая директория хранения объектов
	dataDir string
}

// NewDiskStore создаёт дисковое хранилище. Создаёт корневую
// директорию, если она не существует.
func NewDiskStore(dataDir string) (*DiskStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}
	return &DiskStore{dataDir: dataDir}, nil
}

// Put записывает содержимое reader под ключом key.
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется, частичных объектов не остаётся.
func (ds *DiskStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	fullPath, err := ds.fullPath(key)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return 0, fmt.Errorf("не удалось создать директорию для %s: %w", key, err)
	}

	tmpPath := fullPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// Прерывание контекста между записью и rename: объект не публикуем
	if err := ctx.Err(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return size, nil
}

// Open открывает объект для чтения.
func (ds *DiskStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := ds.fullPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("ошибка открытия объекта %s: %w", key, err)
	}
	return f, nil
}

// Delete удаляет объект с диска.
// Возвращает nil, если объект уже не существует.
func (ds *DiskStore) Delete(ctx context.Context, key string) error {
	fullPath, err := ds.fullPath(key)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}
	return nil
}

// Exists проверяет существование объекта на диске.
func (ds *DiskStore) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := ds.fullPath(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка проверки объекта %s: %w", key, err)
	}
	return true, nil
}

// DataDir возвращает путь к директории данных.
func (ds *DiskStore) DataDir() string {
	return ds.dataDir
}

// fullPath отображает ключ в абсолютный путь внутри dataDir.
// Ключ не должен выходить за пределы корневой директории.
func (ds *DiskStore) fullPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("пустой ключ объекта")
	}

	cleaned := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("недопустимый ключ объекта: %q", key)
	}

	return filepath.Join(ds.dataDir, cleaned), nil
}

// Проверка на этапе компиляции
var _ BlobStore = (*DiskStore)(nil)
