// Пакет model — доменные модели docvault.
// HistoryRecord — единая структура записи об загруженном документе,
// используется как in-memory представление и как формат сериализации
// в хранилище истории.
package model

import (
	"fmt"
	"time"
)

// ExpireOption — вариант срока хранения документа.
// Сериализуется по стабильной метке (не по индексу), чтобы формат
// не зависел от порядка объявления вариантов.
type ExpireOption string

const (
	// ExpireOneHour — хранение 1 час
	ExpireOneHour ExpireOption = "1h"
	// ExpireSevenDays — хранение 7 дней
	ExpireSevenDays ExpireOption = "7d"
	// ExpireThirtyDays — хранение 30 дней
	ExpireThirtyDays ExpireOption = "30d"
	// ExpirePermanent — без срока хранения.
	// Duration() == 0 — это sentinel "никогда не истекает",
	// а не "уже истёк".
	ExpirePermanent ExpireOption = "permanent"
)

// Duration возвращает длительность хранения для варианта.
// Для ExpirePermanent возвращает 0.
func (o ExpireOption) Duration() time.Duration {
	switch o {
	case ExpireOneHour:
		return time.Hour
	case ExpireSevenDays:
		return 7 * 24 * time.Hour
	case ExpireThirtyDays:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Permanent возвращает true для варианта без срока хранения.
func (o ExpireOption) Permanent() bool {
	return o == ExpirePermanent
}

// Valid проверяет, что метка принадлежит закрытому набору вариантов.
func (o ExpireOption) Valid() bool {
	switch o {
	case ExpireOneHour, ExpireSevenDays, ExpireThirtyDays, ExpirePermanent:
		return true
	default:
		return false
	}
}

// ParseExpireOption преобразует метку в ExpireOption.
// Возвращает ошибку для метки вне закрытого набора.
func ParseExpireOption(s string) (ExpireOption, error) {
	o := ExpireOption(s)
	if !o.Valid() {
		return "", fmt.Errorf("недопустимый вариант срока хранения %q, допустимые: 1h, 7d, 30d, permanent", s)
	}
	return o, nil
}

// Options возвращает доступные варианты срока хранения.
// ExpirePermanent включается только если allowPermanent == true.
func Options(allowPermanent bool) []ExpireOption {
	opts := []ExpireOption{ExpireOneHour, ExpireSevenDays, ExpireThirtyDays}
	if allowPermanent {
		opts = append(opts, ExpirePermanent)
	}
	return opts
}

// HistoryRecord — запись об одном загруженном документе.
// StoragePath и CreatedAt назначаются один раз и не изменяются.
type HistoryRecord struct {
	// DisplayName — оригинальное имя файла (только для отображения,
	// недоверенное, никогда не участвует в формировании ключей)
	DisplayName string `json:"display_name"`

	// StoragePath — непрозрачный ключ объекта в blob-хранилище.
	// Формат: {identity}/{uuid}{ext}. Глобально уникален.
	StoragePath string `json:"storage_path"`

	// Fingerprint — SHA-256 содержимого файла (hex).
	// Ключ дедупликации, пустой если дедупликация выключена.
	Fingerprint string `json:"fingerprint,omitempty"`

	// ExpireOption — выбранный срок хранения
	ExpireOption ExpireOption `json:"expire_option"`

	// CreatedAt — время создания записи, epoch milliseconds.
	CreatedAt int64 `json:"created_at"`
}

// ExpiresAt возвращает момент истечения в epoch milliseconds.
// Второе значение false для permanent записей (истечения нет).
func (r *HistoryRecord) ExpiresAt() (int64, bool) {
	if r.ExpireOption.Permanent() {
		return 0, false
	}
	return r.CreatedAt + r.ExpireOption.Duration().Milliseconds(), true
}

// IsExpired проверяет, истёк ли срок хранения записи на момент now
// (epoch milliseconds). Всегда вычисляется заново от текущего времени,
// результат не кэшируется.
func (r *HistoryRecord) IsExpired(now int64) bool {
	expiresAt, ok := r.ExpiresAt()
	if !ok {
		return false
	}
	return now >= expiresAt
}

// Validate проверяет инварианты записи после десериализации.
func (r *HistoryRecord) Validate() error {
	if r.StoragePath == "" {
		return fmt.Errorf("пустой storage_path")
	}
	if !r.ExpireOption.Valid() {
		return fmt.Errorf("недопустимый expire_option %q", string(r.ExpireOption))
	}
	if r.CreatedAt <= 0 {
		return fmt.Errorf("некорректный created_at %d", r.CreatedAt)
	}
	return nil
}

// NowMillis возвращает текущее время в epoch milliseconds (UTC).
func NowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}
