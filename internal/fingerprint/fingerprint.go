// Пакет fingerprint — вычисление стабильного отпечатка содержимого документа.
// SHA-256 по всему потоку байтов, обработка порциями фиксированного размера:
// потребление памяти O(размер буфера), не O(размер файла).
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// bufferSize — размер буфера потоковой обработки.
const bufferSize = 64 * 1024

// Sum вычисляет SHA-256 hex-отпечаток содержимого потока.
// Детерминирован: одинаковые байты всегда дают одинаковый отпечаток,
// независимо от имени файла и времени загрузки.
//
// Ошибка чтения потока возвращается вызывающему коду: нечитаемый
// источник нельзя трактовать как "дубликат не найден".
func Sum(r io.Reader) (string, error) {
	hasher := sha256.New()
	buf := make([]byte, bufferSize)

	if _, err := io.CopyBuffer(hasher, r, buf); err != nil {
		return "", fmt.Errorf("ошибка чтения потока при вычислении отпечатка: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
