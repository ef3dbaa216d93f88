package grant

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/arturkryukov/docvault/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	return NewIssuer(
		[]byte("test-secret"),
		"https://docvault.example.com",
		720*time.Hour,
		time.Minute,
		16,
		testLogger(),
	)
}

func TestIssueAndVerify(t *testing.T) {
	issuer := newTestIssuer(t)

	g, err := issuer.Issue("alice/doc.pdf", model.ExpireOneHour)
	if err != nil {
		t.Fatalf("Issue: неожиданная ошибка %v", err)
	}

	if !strings.HasPrefix(g.URL, "https://docvault.example.com/api/v1/documents/view?token=") {
		t.Errorf("подписанный URL имеет неверную форму: %s", g.URL)
	}
	if g.Token == "" {
		t.Errorf("пустой токен в выданном праве")
	}

	wantExpiry := time.Now().Add(time.Hour)
	if g.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) || g.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("срок действия: хотели около %s, получили %s", wantExpiry, g.ExpiresAt)
	}

	storagePath, err := issuer.Verify(g.Token)
	if err != nil {
		t.Fatalf("Verify: неожиданная ошибка %v", err)
	}
	if storagePath != "alice/doc.pdf" {
		t.Errorf("Verify: хотели %q, получили %q", "alice/doc.pdf", storagePath)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	issuer := newTestIssuer(t)

	g, err := issuer.Issue("alice/doc.pdf", model.ExpireOneHour)
	if err != nil {
		t.Fatalf("Issue: неожиданная ошибка %v", err)
	}

	tampered := g.Token[:len(g.Token)-4] + "XXXX"
	if _, err := issuer.Verify(tampered); err == nil {
		t.Errorf("Verify искажённого токена: хотели ошибку, получили nil")
	}

	if _, err := issuer.Verify(""); err == nil {
		t.Errorf("Verify пустого токена: хотели ошибку, получили nil")
	}
}

// Токен, подписанный другим секретом, не проходит проверку.
func TestVerifyRejectsForeignSecret(t *testing.T) {
	issuer := newTestIssuer(t)
	foreign := NewIssuer([]byte("другой-секрет"), "https://docvault.example.com",
		720*time.Hour, time.Minute, 16, testLogger())

	g, err := foreign.Issue("alice/doc.pdf", model.ExpireOneHour)
	if err != nil {
		t.Fatalf("Issue: неожиданная ошибка %v", err)
	}

	if _, err := issuer.Verify(g.Token); err == nil {
		t.Errorf("Verify токена с чужим секретом: хотели ошибку, получили nil")
	}
}

// Permanent не означает бессрочный URL: срок токена ограничен maxTTL,
// перевыпуск дешевле бессрочности.
func TestIssuePermanentCappedAtMaxTTL(t *testing.T) {
	maxTTL := 48 * time.Hour
	issuer := NewIssuer([]byte("test-secret"), "https://docvault.example.com",
		maxTTL, time.Minute, 16, testLogger())

	g, err := issuer.Issue("alice/doc.pdf", model.ExpirePermanent)
	if err != nil {
		t.Fatalf("Issue: неожиданная ошибка %v", err)
	}

	wantExpiry := time.Now().Add(maxTTL)
	if g.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("срок permanent-токена не ограничен maxTTL: %s", g.ExpiresAt)
	}
	if g.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) {
		t.Errorf("срок permanent-токена меньше maxTTL: %s", g.ExpiresAt)
	}
}

// Повторная выдача в пределах TTL кэша возвращает тот же URL.
func TestIssueCached(t *testing.T) {
	issuer := newTestIssuer(t)

	first, err := issuer.Issue("alice/doc.pdf", model.ExpireOneHour)
	if err != nil {
		t.Fatalf("Issue: неожиданная ошибка %v", err)
	}
	second, err := issuer.Issue("alice/doc.pdf", model.ExpireOneHour)
	if err != nil {
		t.Fatalf("повторный Issue: неожиданная ошибка %v", err)
	}
	if first.URL != second.URL {
		t.Errorf("повторная выдача вернула другой URL")
	}

	// Другой вариант срока — другой ключ кэша
	other, err := issuer.Issue("alice/doc.pdf", model.ExpireSevenDays)
	if err != nil {
		t.Fatalf("Issue: неожиданная ошибка %v", err)
	}
	if other.URL == first.URL {
		t.Errorf("выдача с другим вариантом срока вернула закэшированный URL")
	}
}
