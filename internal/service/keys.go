// Package service validates keys and values before they reach storage.
package service

import (
	"strings"
	"unicode"

	"cgi-kvstore/internal/cgierr"
	"cgi-kvstore/internal/storage"
)

// KeyService reads and writes values by key.
type KeyService struct {
	store *storage.Store
}

// NewKeyService creates a KeyService backed by store.
func NewKeyService(store *storage.Store) *KeyService {
	return &KeyService{store: store}
}

// Get returns the value stored under key.
func (s *KeyService) Get(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return s.store.Get(key)
}

// Put stores value under key and returns the value as stored, trimmed of
// surrounding whitespace. Existing keys are never overwritten.
func (s *KeyService) Put(key, value string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	value, err := NormalizeValue(value)
	if err != nil {
		return "", err
	}
	if err := s.store.Set(key, value); err != nil {
		return "", err
	}
	return value, nil
}

// ValidateKey requires a non-empty key of ASCII letters and digits.
func ValidateKey(key string) error {
	if key == "" {
		return cgierr.BadRequest("Bad Request: missing key")
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return cgierr.BadRequest("Bad Request: key must be alphanumeric")
		}
	}
	return nil
}

// NormalizeValue trims value and requires the result to be non-empty and
// printable. Interior line breaks and control characters are rejected.
func NormalizeValue(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", cgierr.BadRequest("Bad Request: value must not be empty")
	}
	for _, r := range value {
		if !unicode.IsPrint(r) {
			return "", cgierr.BadRequest("Bad Request: value must be printable text")
		}
	}
	return value, nil
}
