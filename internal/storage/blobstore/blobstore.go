// Пакет blobstore — абстракция объектного хранилища документов.
// Ядро работает только с интерфейсом BlobStore; конкретная реализация
// (диск, внешний объектный сервис) передаётся как явная зависимость
// конструкторов, а не через module-level singleton.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound — объект с указанным ключом отсутствует в хранилище.
var ErrNotFound = errors.New("объект не найден в blob-хранилище")

// BlobStore — минимальный контракт объектного хранилища.
type BlobStore interface {
	// Put записывает содержимое reader под ключом key.
	// Возвращает количество записанных байт.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)

	// Open открывает объект для чтения.
	// Возвращает ErrNotFound, если объекта нет.
	// Вызывающий код обязан закрыть ReadCloser.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete удаляет объект. Идемпотентен: отсутствующий ключ — не ошибка.
	Delete(ctx context.Context, key string) error

	// Exists проверяет существование объекта.
	Exists(ctx context.Context, key string) (bool, error)
}
