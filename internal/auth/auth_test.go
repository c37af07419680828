package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestGetAPIKeyFromEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "  test-api-key-12345\n")

	key, err := GetAPIKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-api-key-12345" {
		t.Errorf("expected trimmed key, got %q", key)
	}
}

func TestGetAPIKeyNoSource(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv("HOME", t.TempDir())

	_, err := GetAPIKey()
	if !errors.Is(err, ErrNoKey) {
		t.Errorf("expected ErrNoKey, got %v", err)
	}
}

func TestCredentialPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := credentialPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(home, ".gemini-transcriber", "credentials.gpg"); path != want {
		t.Errorf("expected path %q, got %q", want, path)
	}
}

func TestPassphraseFilePermissions(t *testing.T) {
	dir := t.TempDir()
	loose := filepath.Join(dir, "loose")
	strict := filepath.Join(dir, "strict")
	if err := os.WriteFile(loose, []byte("pw"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(strict, []byte("pw"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvPassphraseFile, loose)
	if _, ok := passphraseFile(); ok {
		t.Error("world-readable passphrase file must be skipped")
	}

	t.Setenv(EnvPassphraseFile, strict)
	if got, ok := passphraseFile(); !ok || got != strict {
		t.Errorf("expected owner-only passphrase file to be used, got %q %v", got, ok)
	}

	t.Setenv(EnvPassphraseFile, "")
	if _, ok := passphraseFile(); ok {
		t.Error("no passphrase file expected when unset")
	}
}
