// Пакет handlers — HTTP-обработчики API docvault.
// documents.go — операции над документами: загрузка, список,
// выдача прав доступа, просмотр, удаление.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/docvault/internal/api/errors"
	"github.com/arturkryukov/docvault/internal/api/middleware"
	"github.com/arturkryukov/docvault/internal/domain/model"
	"github.com/arturkryukov/docvault/internal/grant"
	"github.com/arturkryukov/docvault/internal/service"
	"github.com/arturkryukov/docvault/internal/storage/blobstore"
	"github.com/arturkryukov/docvault/internal/storage/ledger"
)

// maxMultipartMemory — лимит памяти для разбора multipart-форм (32 MB),
// остальное спулится на диск.
const maxMultipartMemory = 32 << 20

// Documents — обработчики операций над документами.
type Documents struct {
	uploader *service.Uploader
	issuer   *grant.Issuer
	blobs    blobstore.BlobStore
	ldg      *ledger.Ledger
	probe    service.Probe
	// allowPermanent — разрешён ли вариант permanent (влияет на
	// список вариантов в ответах и валидацию grant)
	allowPermanent bool
	logger         *slog.Logger
}

// NewDocuments создаёт обработчики операций над документами.
func NewDocuments(
	uploader *service.Uploader,
	issuer *grant.Issuer,
	blobs blobstore.BlobStore,
	ldg *ledger.Ledger,
	probe service.Probe,
	allowPermanent bool,
	logger *slog.Logger,
) *Documents {
	return &Documents{
		uploader:       uploader,
		issuer:         issuer,
		blobs:          blobs,
		ldg:            ldg,
		probe:          probe,
		allowPermanent: allowPermanent,
		logger:         logger.With(slog.String("component", "documents_handler")),
	}
}

// documentResponse — представление записи журнала в API.
// Момент истечения всегда выводится из created_at и expire_option,
// отдельно он нигде не хранится.
type documentResponse struct {
	DisplayName  string `json:"display_name"`
	StoragePath  string `json:"storage_path"`
	Fingerprint  string `json:"fingerprint,omitempty"`
	ExpireOption string `json:"expire_option"`
	CreatedAt    int64  `json:"created_at"`
	ExpiresAt    *int64 `json:"expires_at,omitempty"`
	Expired      bool   `json:"expired"`
}

func toDocumentResponse(rec model.HistoryRecord, now int64) documentResponse {
	resp := documentResponse{
		DisplayName:  rec.DisplayName,
		StoragePath:  rec.StoragePath,
		Fingerprint:  rec.Fingerprint,
		ExpireOption: string(rec.ExpireOption),
		CreatedAt:    rec.CreatedAt,
		Expired:      rec.IsExpired(now),
	}
	if expiresAt, ok := rec.ExpiresAt(); ok {
		resp.ExpiresAt = &expiresAt
	}
	return resp
}

// Upload обрабатывает POST /api/v1/documents.
// Multipart-форма: file — содержимое документа, expire_option —
// вариант срока хранения. При дедупликации возвращает 200 и
// существующую запись, иначе 201 и новую.
func (d *Documents) Upload(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		apierrors.ValidationError(w, "Некорректная multipart-форма")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Отсутствует поле file")
		return
	}
	defer file.Close()

	optionRaw := r.FormValue("expire_option")
	option, err := model.ParseExpireOption(optionRaw)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	result, upErr := d.uploader.Upload(r.Context(), service.UploadParams{
		Reader:      file,
		DisplayName: header.Filename,
		Option:      option,
		Identity:    identity,
	})
	if upErr != nil {
		apierrors.WriteError(w, upErr.StatusCode, upErr.Code, upErr.Message)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}

	// Сразу выдаём право просмотра на срок варианта загрузки:
	// клиенту не нужен отдельный запрос ради первого показа
	g, err := d.issuer.Issue(result.Record.StoragePath, result.Record.ExpireOption)
	if err != nil {
		d.logger.Error("Ошибка выдачи права доступа после загрузки",
			slog.String("storage_path", result.Record.StoragePath),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Документ загружен, но выдать право доступа не удалось")
		return
	}

	writeJSON(w, status, struct {
		documentResponse
		Reused bool   `json:"reused"`
		URL    string `json:"url"`
	}{
		documentResponse: toDocumentResponse(result.Record, model.NowMillis()),
		Reused:           result.Reused,
		URL:              g.URL,
	})
}

// List обрабатывает GET /api/v1/documents.
// Возвращает записи журнала принципала, новые первые. Просроченные
// записи помечаются, но не скрываются: их удаляет фоновая очистка.
func (d *Documents) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	now := model.NowMillis()

	records := d.ldg.ListByIdentity(identity)
	out := make([]documentResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toDocumentResponse(rec, now))
	}

	writeJSON(w, http.StatusOK, struct {
		Documents     []documentResponse `json:"documents"`
		ExpireOptions []string           `json:"expire_options"`
	}{
		Documents:     out,
		ExpireOptions: expireOptionLabels(d.allowPermanent),
	})
}

// grantRequest — тело POST /api/v1/documents/grant.
type grantRequest struct {
	StoragePath  string `json:"storage_path"`
	ExpireOption string `json:"expire_option"`
}

// Grant обрабатывает POST /api/v1/documents/grant.
// Выдаёт подписанный URL просмотра документа. Право можно перевыпустить
// в любой момент, пока объект существует: выдача не зависит от загрузки.
func (d *Documents) Grant(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	option, err := model.ParseExpireOption(req.ExpireOption)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if option.Permanent() && !d.allowPermanent {
		apierrors.WriteError(w, http.StatusForbidden, apierrors.CodeOptionNotAllowed,
			"Вариант permanent отключён конфигурацией")
		return
	}

	rec, ok := d.ldg.FindByPath(req.StoragePath)
	if !ok || !ownedBy(rec.StoragePath, identity) {
		apierrors.NotFound(w, "Документ не найден")
		return
	}

	// Для просроченной записи право не выдаётся: подписанный URL всё
	// равно отклонил бы endpoint просмотра
	if rec.IsExpired(model.NowMillis()) {
		apierrors.NotFound(w, "Срок хранения документа истёк")
		return
	}

	if !d.probe.IsAvailable(r.Context()) {
		apierrors.NetworkFailure(w, "Хранилище недоступно, повторите попытку позже")
		return
	}

	// Объект мог быть удалён очисткой после записи журнала
	exists, err := d.blobs.Exists(r.Context(), rec.StoragePath)
	if err != nil {
		d.logger.Error("Ошибка проверки наличия объекта",
			slog.String("storage_path", rec.StoragePath),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка обращения к хранилищу")
		return
	}
	if !exists {
		apierrors.NotFound(w, "Объект документа не найден в хранилище")
		return
	}

	g, err := d.issuer.Issue(rec.StoragePath, option)
	if err != nil {
		d.logger.Error("Ошибка выдачи права доступа",
			slog.String("storage_path", rec.StoragePath),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка выдачи права доступа")
		return
	}

	writeJSON(w, http.StatusOK, g)
}

// View обрабатывает GET /api/v1/documents/view?token=...
// Публичный endpoint: аутентификация — сам подписанный токен.
// Отдаёт содержимое документа потоком.
func (d *Documents) View(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		apierrors.GrantInvalid(w, "Отсутствует параметр token")
		return
	}

	storagePath, err := d.issuer.Verify(tokenString)
	if err != nil {
		apierrors.GrantInvalid(w, "Невалидный или просроченный токен доступа")
		return
	}

	// Запись могла истечь раньше токена (permanent ограничен maxTTL,
	// но обратное соотношение не гарантируется)
	if rec, ok := d.ldg.FindByPath(storagePath); ok && rec.IsExpired(model.NowMillis()) {
		apierrors.NotFound(w, "Срок хранения документа истёк")
		return
	}

	rc, err := d.blobs.Open(r.Context(), storagePath)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			apierrors.NotFound(w, "Документ не найден")
			return
		}
		d.logger.Error("Ошибка чтения объекта",
			slog.String("storage_path", storagePath),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка чтения документа")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentTypeByExt(storagePath))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		// Ответ уже начат, остаётся только залогировать
		d.logger.Warn("Прерван стриминг документа",
			slog.String("storage_path", storagePath),
			slog.String("error", err.Error()),
		)
	}
}

// Delete обрабатывает DELETE /api/v1/documents/{storage-path...}.
// Сначала удаляется объект, затем запись журнала.
func (d *Documents) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	storagePath := chi.URLParam(r, "*")
	if storagePath == "" {
		apierrors.ValidationError(w, "Не указан storage path документа")
		return
	}

	rec, ok := d.ldg.FindByPath(storagePath)
	if !ok || !ownedBy(rec.StoragePath, identity) {
		apierrors.NotFound(w, "Документ не найден")
		return
	}

	// Сначала объект, потом запись: осиротевшая запись безопаснее
	// осиротевшего объекта
	if err := d.blobs.Delete(r.Context(), rec.StoragePath); err != nil {
		d.logger.Error("Ошибка удаления объекта",
			slog.String("storage_path", rec.StoragePath),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка удаления документа")
		return
	}

	if err := d.ldg.Remove(r.Context(), rec.StoragePath); err != nil {
		d.logger.Error("Ошибка удаления записи журнала",
			slog.String("storage_path", rec.StoragePath),
			slog.String("error", err.Error()),
		)
		apierrors.LedgerUnavailable(w, "Хранилище журнала недоступно")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Clear обрабатывает DELETE /api/v1/documents.
// Удаляет все документы принципала: для каждого — объект, затем запись.
// Ошибка удаления объекта оставляет запись (её доберёт следующий вызов
// или фоновая очистка после истечения срока).
func (d *Documents) Clear(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	removed := 0
	failed := 0
	for _, rec := range d.ldg.ListByIdentity(identity) {
		if err := d.blobs.Delete(r.Context(), rec.StoragePath); err != nil {
			d.logger.Error("Ошибка удаления объекта",
				slog.String("storage_path", rec.StoragePath),
				slog.String("error", err.Error()),
			)
			failed++
			continue
		}
		if err := d.ldg.Remove(r.Context(), rec.StoragePath); err != nil {
			d.logger.Error("Ошибка удаления записи журнала",
				slog.String("storage_path", rec.StoragePath),
				slog.String("error", err.Error()),
			)
			failed++
			continue
		}
		removed++
	}

	writeJSON(w, http.StatusOK, struct {
		Removed int `json:"removed"`
		Failed  int `json:"failed"`
	}{Removed: removed, Failed: failed})
}

// ownedBy проверяет принадлежность storage path принципалу.
// Ключи всегда имеют вид {identity}/{uuid}{ext}.
func ownedBy(storagePath, identity string) bool {
	return strings.HasPrefix(storagePath, identity+"/")
}

// expireOptionLabels возвращает метки доступных вариантов срока хранения.
func expireOptionLabels(allowPermanent bool) []string {
	options := model.Options(allowPermanent)
	labels := make([]string, 0, len(options))
	for _, opt := range options {
		labels = append(labels, string(opt))
	}
	return labels
}

// contentTypeByExt определяет Content-Type по расширению ключа.
func contentTypeByExt(storagePath string) string {
	if ct := mime.TypeByExtension(filepath.Ext(storagePath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// writeJSON сериализует ответ в JSON.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
