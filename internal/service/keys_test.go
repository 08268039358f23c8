package service

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"cgi-kvstore/internal/cgierr"
	"cgi-kvstore/internal/config"
	"cgi-kvstore/internal/storage"
)

func newTestService(t *testing.T) *KeyService {
	t.Helper()
	cfg := &config.Config{Storage: config.StorageConfig{Root: t.TempDir(), FileMode: 0o644}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.New(cfg, logger, nil)
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	return NewKeyService(store)
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"abc123", false},
		{"ABC", false},
		{"0", false},
		{"", true},
		{"abc-123", true},
		{"abc_123", true},
		{"a b", true},
		{"../../etc/passwd", true},
		{"café", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && cgierr.From(err).Code != http.StatusBadRequest {
				t.Errorf("ValidateKey(%q) code = %d, want 400", tt.key, cgierr.From(err).Code)
			}
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{"plain", "hello", "hello", false},
		{"trimmed", "  hello world \n", "hello world", false},
		{"unicode", "héllo 世界", "héllo 世界", false},
		{"empty", "", "", true},
		{"whitespace only", " \t\r\n ", "", true},
		{"interior newline", "hello\nworld", "", true},
		{"control character", "hel\x07lo", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeValue(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeValue(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeValue(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestKeyService_PutGet(t *testing.T) {
	svc := newTestService(t)

	stored, err := svc.Put("abc123", " hello \n")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if stored != "hello" {
		t.Errorf("Put() = %q, want %q", stored, "hello")
	}

	got, err := svc.Get("abc123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("Get() = %q, want %q", got, "hello")
	}

	_, err = svc.Put("abc123", "world")
	if code := cgierr.From(err).Code; err == nil || code != http.StatusBadRequest {
		t.Errorf("second Put() err = %v, want 400", err)
	}
}

func TestKeyService_RejectsBeforeStorage(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Get("../../etc/passwd"); cgierr.From(err).Code != http.StatusBadRequest {
		t.Errorf("Get(traversal) err = %v, want 400", err)
	}
	if _, err := svc.Put("abc", "   "); cgierr.From(err).Code != http.StatusBadRequest {
		t.Errorf("Put(blank value) err = %v, want 400", err)
	}
	if _, err := svc.Get("neverstored"); cgierr.From(err).Code != http.StatusNotFound {
		t.Errorf("Get(missing) err = %v, want 404", err)
	}
}
