// pg_store.go — PostgreSQL backend журнала через pgxpool.
// Используется в multi-tenant развёртывании, когда журнал живёт
// в общей базе. Схема создаётся при старте, если отсутствует.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arturkryukov/docvault/internal/domain/model"
)

// schemaSQL — схема таблицы журнала.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS history_records (
	storage_path  TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL DEFAULT '',
	fingerprint   TEXT NOT NULL DEFAULT '',
	expire_option TEXT NOT NULL,
	created_at    BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_records_fingerprint
	ON history_records (fingerprint) WHERE fingerprint <> '';
`

// PGStore — журнал в PostgreSQL.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGStore создаёт PostgreSQL backend журнала: подключается к базе,
// проверяет соединение и создаёт схему при необходимости.
func NewPGStore(ctx context.Context, dsn string, logger *slog.Logger) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к postgresql: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания схемы журнала: %w", err)
	}

	return &PGStore{
		pool:   pool,
		logger: logger.With(slog.String("component", "ledger_pg")),
	}, nil
}

// Load читает все записи журнала, новые первые.
// Строки с невалидной меткой срока хранения пропускаются с записью в лог.
func (ps *PGStore) Load(ctx context.Context) ([]model.HistoryRecord, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT storage_path, display_name, fingerprint, expire_option, created_at
		FROM history_records
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}
	defer rows.Close()

	var records []model.HistoryRecord
	for rows.Next() {
		var rec model.HistoryRecord
		var option string
		if err := rows.Scan(&rec.StoragePath, &rec.DisplayName, &rec.Fingerprint, &option, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки журнала: %w", err)
		}
		rec.ExpireOption = model.ExpireOption(option)
		if err := rec.Validate(); err != nil {
			ps.logger.Warn("Невалидная запись журнала пропущена",
				slog.String("storage_path", rec.StoragePath),
				slog.String("error", err.Error()),
			)
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}

	return records, nil
}

// Save записывает полный снимок журнала в одной транзакции.
func (ps *PGStore) Save(ctx context.Context, records []model.HistoryRecord) error {
	tx, err := ps.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM history_records`); err != nil {
		return fmt.Errorf("ошибка очистки журнала: %w", err)
	}

	for i := range records {
		rec := &records[i]
		_, err := tx.Exec(ctx, `
			INSERT INTO history_records (storage_path, display_name, fingerprint, expire_option, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			rec.StoragePath, rec.DisplayName, rec.Fingerprint, string(rec.ExpireOption), rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("ошибка записи %s: %w", rec.StoragePath, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка коммита транзакции: %w", err)
	}
	return nil
}

// Ping проверяет доступность базы. Используется connectivity probe.
func (ps *PGStore) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close закрывает пул подключений.
func (ps *PGStore) Close() {
	ps.pool.Close()
}

// Проверка на этапе компиляции
var _ Store = (*PGStore)(nil)
