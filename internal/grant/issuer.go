// Пакет grant — выдача временных прав доступа к документам.
//
// Право доступа — подписанный HS256 JWT, связывающий storage path
// документа со сроком действия. Подписанный URL ведёт на endpoint
// просмотра сервиса; проверка подписи и срока выполняется там же
// через Verify. Повторная выдача дешёвая и идемпотентная: токен
// можно перевыпустить независимо от повторной загрузки.
package grant

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/arturkryukov/docvault/internal/domain/model"
)

// ErrInvalidGrant — токен не прошёл проверку подписи или срока действия.
var ErrInvalidGrant = errors.New("невалидный или просроченный токен доступа")

// viewPath — путь endpoint-а просмотра, в который встраивается токен.
const viewPath = "/api/v1/documents/view"

// Grant — выданное право доступа.
type Grant struct {
	// URL — полный подписанный URL просмотра
	URL string `json:"url"`
	// Token — подписанный JWT (тот же, что встроен в URL)
	Token string `json:"token"`
	// ExpiresAt — момент истечения права доступа
	ExpiresAt time.Time `json:"expires_at"`
}

// Issuer — эмитент прав доступа.
type Issuer struct {
	secret  []byte
	baseURL string
	// maxTTL — верхняя граница срока действия токена. Вариант
	// permanent ограничивается этой величиной: подписанный URL
	// не может быть бессрочным, перевыпуск дешевле бессрочности.
	maxTTL time.Duration
	cache  *expirable.LRU[string, *Grant]
	logger *slog.Logger
}

// NewIssuer создаёт эмитент прав доступа.
//
// cacheTTL задаёт срок жизни записей в LRU-кэше выданных прав и должен
// быть существенно меньше минимального варианта срока хранения, чтобы
// закэшированный URL всегда оставался живым.
func NewIssuer(secret []byte, baseURL string, maxTTL, cacheTTL time.Duration, cacheSize int, logger *slog.Logger) *Issuer {
	return &Issuer{
		secret:  secret,
		baseURL: baseURL,
		maxTTL:  maxTTL,
		cache:   expirable.NewLRU[string, *Grant](cacheSize, nil, cacheTTL),
		logger:  logger.With(slog.String("component", "grant_issuer")),
	}
}

// Issue выдаёт право доступа к документу на срок варианта option.
// Для permanent срок ограничивается maxTTL (сознательное приближение:
// на сетевом уровне бессрочных прав нет, токен перевыпускается).
func (i *Issuer) Issue(storagePath string, option model.ExpireOption) (*Grant, error) {
	cacheKey := storagePath + "|" + string(option)
	if cached, ok := i.cache.Get(cacheKey); ok {
		grantCacheHitsTotal.Inc()
		return cached, nil
	}
	grantCacheMissesTotal.Inc()

	ttl := option.Duration()
	if option.Permanent() || ttl > i.maxTTL {
		ttl = i.maxTTL
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	claims := jwt.RegisteredClaims{
		Subject:   storagePath,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.New().String(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("ошибка подписи токена доступа: %w", err)
	}

	g := &Grant{
		URL:       i.baseURL + viewPath + "?token=" + url.QueryEscape(token),
		Token:     token,
		ExpiresAt: expiresAt,
	}
	i.cache.Add(cacheKey, g)

	grantsIssuedTotal.Inc()
	i.logger.Debug("Право доступа выдано",
		slog.String("storage_path", storagePath),
		slog.String("option", string(option)),
		slog.Time("expires_at", expiresAt),
	)

	return g, nil
}

// Verify проверяет подпись и срок действия токена.
// Возвращает storage path документа, к которому выдано право.
func (i *Issuer) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidGrant
	}

	if claims.Subject == "" {
		return "", ErrInvalidGrant
	}
	return claims.Subject, nil
}
