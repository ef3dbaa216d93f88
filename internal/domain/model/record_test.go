package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestExpireOptionDuration(t *testing.T) {
	tests := []struct {
		option ExpireOption
		want   time.Duration
	}{
		{ExpireOneHour, time.Hour},
		{ExpireSevenDays, 7 * 24 * time.Hour},
		{ExpireThirtyDays, 30 * 24 * time.Hour},
		{ExpirePermanent, 0},
	}

	for _, tt := range tests {
		if got := tt.option.Duration(); got != tt.want {
			t.Errorf("Duration(%s): хотели %s, получили %s", tt.option, tt.want, got)
		}
	}
}

func TestParseExpireOption(t *testing.T) {
	for _, label := range []string{"1h", "7d", "30d", "permanent"} {
		opt, err := ParseExpireOption(label)
		if err != nil {
			t.Errorf("ParseExpireOption(%q): неожиданная ошибка %v", label, err)
		}
		if string(opt) != label {
			t.Errorf("ParseExpireOption(%q): хотели %q, получили %q", label, label, string(opt))
		}
	}

	for _, label := range []string{"", "2h", "1H", "forever", "0"} {
		if _, err := ParseExpireOption(label); err == nil {
			t.Errorf("ParseExpireOption(%q): хотели ошибку, получили nil", label)
		}
	}
}

func TestOptions(t *testing.T) {
	withoutPermanent := Options(false)
	if len(withoutPermanent) != 3 {
		t.Errorf("Options(false): хотели 3 варианта, получили %d", len(withoutPermanent))
	}
	for _, opt := range withoutPermanent {
		if opt.Permanent() {
			t.Errorf("Options(false) содержит permanent")
		}
	}

	withPermanent := Options(true)
	if len(withPermanent) != 4 {
		t.Errorf("Options(true): хотели 4 варианта, получили %d", len(withPermanent))
	}
	if withPermanent[len(withPermanent)-1] != ExpirePermanent {
		t.Errorf("Options(true): последним вариантом хотели permanent, получили %s", withPermanent[len(withPermanent)-1])
	}
}

// Граница истечения: ровно в момент created_at + duration запись
// уже считается просроченной, на миллисекунду раньше — ещё нет.
func TestIsExpiredBoundary(t *testing.T) {
	createdAt := int64(1_700_000_000_000)
	rec := HistoryRecord{
		StoragePath:  "alice/doc.pdf",
		ExpireOption: ExpireOneHour,
		CreatedAt:    createdAt,
	}

	expiresAt, ok := rec.ExpiresAt()
	if !ok {
		t.Fatalf("ExpiresAt: хотели ok=true для варианта 1h")
	}
	if want := createdAt + time.Hour.Milliseconds(); expiresAt != want {
		t.Fatalf("ExpiresAt: хотели %d, получили %d", want, expiresAt)
	}

	if rec.IsExpired(expiresAt - 1) {
		t.Errorf("IsExpired за 1мс до границы: хотели false, получили true")
	}
	if !rec.IsExpired(expiresAt) {
		t.Errorf("IsExpired ровно на границе: хотели true, получили false")
	}
	if !rec.IsExpired(expiresAt + 1) {
		t.Errorf("IsExpired через 1мс после границы: хотели true, получили false")
	}
}

// Permanent запись не истекает никогда, каким бы далёким ни было now.
func TestPermanentNeverExpires(t *testing.T) {
	rec := HistoryRecord{
		StoragePath:  "alice/doc.pdf",
		ExpireOption: ExpirePermanent,
		CreatedAt:    1,
	}

	if _, ok := rec.ExpiresAt(); ok {
		t.Errorf("ExpiresAt для permanent: хотели ok=false")
	}

	farFuture := time.Now().AddDate(100, 0, 0).UnixMilli()
	if rec.IsExpired(farFuture) {
		t.Errorf("IsExpired для permanent: хотели false, получили true")
	}
}

// Вариант сериализуется стабильной меткой, а не индексом: порядок
// объявления вариантов не влияет на формат хранения.
func TestRecordJSONRoundTrip(t *testing.T) {
	rec := HistoryRecord{
		DisplayName:  "отчёт.pdf",
		StoragePath:  "alice/0c7c6f65.pdf",
		Fingerprint:  "abc123",
		ExpireOption: ExpireSevenDays,
		CreatedAt:    1_700_000_000_000,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: неожиданная ошибка %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal в map: неожиданная ошибка %v", err)
	}
	if m["expire_option"] != "7d" {
		t.Errorf("expire_option в JSON: хотели %q, получили %v", "7d", m["expire_option"])
	}

	var back HistoryRecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: неожиданная ошибка %v", err)
	}
	if back != rec {
		t.Errorf("round-trip: хотели %+v, получили %+v", rec, back)
	}
}

func TestValidate(t *testing.T) {
	valid := HistoryRecord{
		StoragePath:  "alice/doc.pdf",
		ExpireOption: ExpireOneHour,
		CreatedAt:    1,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate валидной записи: неожиданная ошибка %v", err)
	}

	tests := []struct {
		name string
		rec  HistoryRecord
	}{
		{"пустой storage_path", HistoryRecord{ExpireOption: ExpireOneHour, CreatedAt: 1}},
		{"недопустимый expire_option", HistoryRecord{StoragePath: "a/b", ExpireOption: "2h", CreatedAt: 1}},
		{"нулевой created_at", HistoryRecord{StoragePath: "a/b", ExpireOption: ExpireOneHour}},
	}
	for _, tt := range tests {
		if err := tt.rec.Validate(); err == nil {
			t.Errorf("Validate (%s): хотели ошибку, получили nil", tt.name)
		}
	}
}
