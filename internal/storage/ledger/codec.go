// codec.go — общая (де)сериализация снимка журнала для file и redis
// backend-ов: один JSON-документ со списком записей.
package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/arturkryukov/docvault/internal/domain/model"
)

// encodeRecords сериализует снимок журнала в JSON.
func encodeRecords(records []model.HistoryRecord) ([]byte, error) {
	if records == nil {
		records = []model.HistoryRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации журнала: %w", err)
	}
	return data, nil
}

// decodeRecords десериализует снимок журнала.
//
// Повреждение одной записи не должно терять весь журнал: каждый
// элемент списка разбирается отдельно, невалидные пропускаются
// с записью в лог. Ошибка возвращается только если сам документ
// не является JSON-списком.
func decodeRecords(data []byte, logger *slog.Logger) ([]model.HistoryRecord, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ошибка десериализации журнала: %w", err)
	}

	records := make([]model.HistoryRecord, 0, len(raw))
	for i, item := range raw {
		var rec model.HistoryRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			logger.Warn("Повреждённая запись журнала пропущена",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := rec.Validate(); err != nil {
			logger.Warn("Невалидная запись журнала пропущена",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}
