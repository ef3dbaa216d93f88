// Пакет service — бизнес-логика docvault.
// uploader.go — оркестратор загрузки: дедупликация по отпечатку
// содержимого и создание записи журнала строго после подтверждённой
// загрузки объекта.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/arturkryukov/docvault/internal/api/errors"
	"github.com/arturkryukov/docvault/internal/domain/model"
	"github.com/arturkryukov/docvault/internal/fingerprint"
	"github.com/arturkryukov/docvault/internal/storage/blobstore"
	"github.com/arturkryukov/docvault/internal/storage/ledger"
)

// Prometheus метрики загрузки
var (
	// uploadsTotal — количество операций загрузки по результату.
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dv_uploads_total",
			Help: "Общее количество операций загрузки документов",
		},
		[]string{"result"},
	)

	// uploadBytesTotal — объём загруженных данных.
	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dv_upload_bytes_total",
		Help: "Общий объём загруженных данных в байтах",
	})
)

// UploadParams — параметры загрузки документа.
type UploadParams struct {
	// Reader — поток данных документа
	Reader io.Reader
	// DisplayName — оригинальное имя файла (только для отображения)
	DisplayName string
	// Option — выбранный срок хранения
	Option model.ExpireOption
	// Identity — идентификатор принципала, пространство имён ключей
	Identity string
}

// UploadResult — результат загрузки документа.
type UploadResult struct {
	// Record — запись журнала (существующая при дедупликации)
	Record model.HistoryRecord
	// Reused — true, если содержимое уже было загружено ранее
	// и повторная загрузка не выполнялась
	Reused bool
}

// UploadError — ошибка загрузки с HTTP-кодом.
type UploadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UploaderConfig — параметры оркестратора загрузки.
type UploaderConfig struct {
	// Dedup — включена ли дедупликация по отпечатку содержимого
	Dedup bool
	// AllowPermanent — разрешён ли вариант permanent
	AllowPermanent bool
	// MaxFileSize — максимальный размер документа в байтах
	MaxFileSize int64
}

// Uploader — оркестратор загрузки документов.
type Uploader struct {
	cfg    UploaderConfig
	blobs  blobstore.BlobStore
	ldg    *ledger.Ledger
	probe  Probe
	logger *slog.Logger
}

// NewUploader создаёт оркестратор загрузки.
func NewUploader(
	cfg UploaderConfig,
	blobs blobstore.BlobStore,
	ldg *ledger.Ledger,
	probe Probe,
	logger *slog.Logger,
) *Uploader {
	return &Uploader{
		cfg:    cfg,
		blobs:  blobs,
		ldg:    ldg,
		probe:  probe,
		logger: logger.With(slog.String("component", "uploader")),
	}
}

// Upload загружает документ или переиспользует уже загруженный.
//
// Поток:
//  1. Валидация варианта срока хранения
//  2. Connectivity probe
//  3. Спулинг потока во временный файл с вычислением SHA-256 на лету
//  4. Поиск дубликата по отпечатку (в пространстве имён identity)
//  5. При дубликате — возврат существующей записи, без второй загрузки
//  6. Иначе — генерация непрозрачного ключа, запись в blob-хранилище
//  7. Запись журнала создаётся строго после подтверждённой загрузки;
//     при ошибке записи журнала объект откатывается
func (u *Uploader) Upload(ctx context.Context, params UploadParams) (*UploadResult, *UploadError) {
	// 1. Проверяем вариант срока хранения
	if !params.Option.Valid() {
		return nil, &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Недопустимый вариант срока хранения %q", string(params.Option)),
		}
	}
	if params.Option.Permanent() && !u.cfg.AllowPermanent {
		return nil, &UploadError{
			StatusCode: 403,
			Code:       apierrors.CodeOptionNotAllowed,
			Message:    "Вариант permanent отключён конфигурацией",
		}
	}
	if params.Identity == "" {
		return nil, &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Пустой идентификатор принципала",
		}
	}

	// 2. Проверяем доступность хранилищ до начала работы
	if !u.probe.IsAvailable(ctx) {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, &UploadError{
			StatusCode: 503,
			Code:       apierrors.CodeNetworkFailure,
			Message:    "Хранилище недоступно, повторите попытку позже",
		}
	}

	// 3. Спулим поток во временный файл, одновременно считая отпечаток.
	// Отпечаток нужен до решения о загрузке, а поток читается один раз.
	tmp, err := os.CreateTemp("", "docvault-upload-*")
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка при подготовке загрузки",
		}
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	limited := io.LimitReader(params.Reader, u.cfg.MaxFileSize+1)
	fp, err := fingerprint.Sum(io.TeeReader(limited, tmp))
	if err != nil {
		u.logger.Error("Ошибка чтения потока документа",
			slog.String("display_name", params.DisplayName),
			slog.String("error", err.Error()),
		)
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeIOFailure,
			Message:    "Не удалось прочитать содержимое документа",
		}
	}

	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка при подготовке загрузки",
		}
	}
	if size > u.cfg.MaxFileSize {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, &UploadError{
			StatusCode: 413,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер документа превышает максимум %d байт", u.cfg.MaxFileSize),
		}
	}

	// 4. Дедупликация: одинаковое содержимое не загружается дважды.
	// Просроченная запись — не дубликат: её объект уже обречён на
	// удаление, возврат такой записи отбросил бы свежевыбранный срок
	// хранения. Идём на полную загрузку, устаревший объект доберёт
	// очистка.
	//
	// Последовательность поиск → загрузка → запись не сериализуется
	// между параллельными запросами: два одновременных одинаковых
	// документа могут оба пройти мимо дедупликации и сохраниться
	// дважды. Сериализация — ответственность вызывающей стороны.
	if u.cfg.Dedup {
		if existing, ok := u.ldg.FindByFingerprint(params.Identity, fp); ok && !existing.IsExpired(model.NowMillis()) {
			uploadsTotal.WithLabelValues("reused").Inc()
			u.logger.Info("Документ переиспользован",
				slog.String("storage_path", existing.StoragePath),
				slog.String("fingerprint", fp),
			)
			return &UploadResult{Record: existing, Reused: true}, nil
		}
	}

	// 5. Генерируем непрозрачный ключ: {identity}/{uuid}{ext}.
	// Имя файла в ключе не участвует — только безопасное расширение
	// как подсказка content-type.
	key := params.Identity + "/" + uuid.New().String() + safeExt(params.DisplayName)

	// 6. Загружаем в blob-хранилище
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка при подготовке загрузки",
		}
	}

	if _, err := u.blobs.Put(ctx, key, tmp); err != nil {
		u.logger.Error("Ошибка записи в blob-хранилище",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		uploadsTotal.WithLabelValues("error").Inc()
		// Запись журнала не создаётся: журнал ссылается только на
		// объекты, загрузка которых подтверждена
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &UploadError{
				StatusCode: 503,
				Code:       apierrors.CodeNetworkFailure,
				Message:    "Загрузка прервана, повторите попытку",
			}
		}
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка записи документа в хранилище",
		}
	}

	// 7. Создаём запись журнала — строго после успешной загрузки
	fpForRecord := ""
	if u.cfg.Dedup {
		fpForRecord = fp
	}
	rec := model.HistoryRecord{
		DisplayName:  params.DisplayName,
		StoragePath:  key,
		Fingerprint:  fpForRecord,
		ExpireOption: params.Option,
		CreatedAt:    model.NowMillis(),
	}

	if err := u.ldg.Add(ctx, rec); err != nil {
		// Откат: объект без записи журнала никем не отслеживается
		if delErr := u.blobs.Delete(ctx, key); delErr != nil {
			u.logger.Error("Ошибка отката объекта после сбоя журнала",
				slog.String("key", key),
				slog.String("error", delErr.Error()),
			)
		}
		u.logger.Error("Ошибка записи журнала",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, &UploadError{
			StatusCode: 503,
			Code:       apierrors.CodeLedgerUnavailable,
			Message:    "Хранилище журнала недоступно",
		}
	}

	uploadsTotal.WithLabelValues("success").Inc()
	uploadBytesTotal.Add(float64(size))

	u.logger.Info("Документ загружен",
		slog.String("storage_path", key),
		slog.String("display_name", params.DisplayName),
		slog.Int64("size", size),
		slog.String("option", string(params.Option)),
	)

	return &UploadResult{Record: rec, Reused: false}, nil
}

// safeExt возвращает безопасное расширение оригинального имени файла.
// Только буквы и цифры, не длиннее 10 символов, иначе пусто.
func safeExt(displayName string) string {
	ext := strings.ToLower(filepath.Ext(displayName))
	if ext == "" || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
