package fingerprint

import (
	"bytes"
	"strings"
	"testing"
)

func TestSumKnownVector(t *testing.T) {
	// SHA-256("hello world")
	const want = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

	got, err := Sum(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Sum: неожиданная ошибка %v", err)
	}
	if got != want {
		t.Errorf("Sum: хотели %s, получили %s", want, got)
	}
}

func TestSumEmpty(t *testing.T) {
	// SHA-256("")
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	got, err := Sum(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("Sum пустого потока: неожиданная ошибка %v", err)
	}
	if got != want {
		t.Errorf("Sum пустого потока: хотели %s, получили %s", want, got)
	}
}

// Отпечаток зависит только от содержимого: одинаковые байты дают
// одинаковый отпечаток независимо от размера чтения.
func TestSumDeterministic(t *testing.T) {
	payload := bytes.Repeat([]byte("docvault"), 100_000)

	first, err := Sum(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Sum: неожиданная ошибка %v", err)
	}
	second, err := Sum(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Sum: неожиданная ошибка %v", err)
	}
	if first != second {
		t.Errorf("Sum не детерминирован: %s != %s", first, second)
	}

	other, err := Sum(bytes.NewReader(payload[:len(payload)-1]))
	if err != nil {
		t.Fatalf("Sum: неожиданная ошибка %v", err)
	}
	if other == first {
		t.Errorf("Sum разного содержимого дал одинаковый отпечаток")
	}
}
