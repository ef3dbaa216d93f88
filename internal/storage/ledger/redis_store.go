// redis_store.go — Redis backend журнала: один JSON-документ под
// известным ключом. Используется, когда история должна переживать
// локальный диск (общий журнал нескольких экземпляров сервиса).
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arturkryukov/docvault/internal/domain/model"
)

// redisKey — ключ снимка журнала в Redis.
const redisKey = "docvault:history"

// connectTimeout — таймаут проверки соединения при создании backend-а.
const connectTimeout = 2 * time.Second

// RedisStore — журнал в Redis.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore создаёт Redis backend журнала и проверяет соединение.
func NewRedisStore(url string, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка подключения к redis: %w", err)
	}

	return &RedisStore{
		client: client,
		logger: logger.With(slog.String("component", "ledger_redis")),
	}, nil
}

// Load читает снимок журнала из Redis.
// Отсутствие ключа — пустой журнал, не ошибка.
func (rs *RedisStore) Load(ctx context.Context) ([]model.HistoryRecord, error) {
	data, err := rs.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения журнала из redis: %w", err)
	}

	return decodeRecords(data, rs.logger)
}

// Save записывает снимок журнала в Redis.
func (rs *RedisStore) Save(ctx context.Context, records []model.HistoryRecord) error {
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}

	if err := rs.client.Set(ctx, redisKey, data, 0).Err(); err != nil {
		return fmt.Errorf("ошибка записи журнала в redis: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis. Используется connectivity probe.
func (rs *RedisStore) Ping(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

// Close закрывает соединение с Redis.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

// Проверка на этапе компиляции
var _ Store = (*RedisStore)(nil)
