// Package auth locates the Gemini API key and checks it against the API
// before any audio is uploaded.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// EnvAPIKey is the environment variable holding the Gemini API key.
const EnvAPIKey = "GEMINI_API_KEY"

// EnvPassphraseFile points at a file holding the GPG passphrase for
// non-interactive decryption.
const EnvPassphraseFile = "TRANSCRIBE_GPG_PASSPHRASE_FILE"

const (
	credentialDir  = ".gemini-transcriber"
	credentialFile = "credentials.gpg"
)

// ErrNoKey is returned when no source yields an API key.
var ErrNoKey = errors.New("API key not found: set " + EnvAPIKey + " or store it GPG-encrypted at ~/" + credentialDir + "/" + credentialFile)

// GetAPIKey returns the Gemini API key. The environment wins; otherwise the
// GPG-encrypted credentials file in the user's home directory is decrypted.
func GetAPIKey() (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		log.Debug().Str("source", "env").Msg("Using API key")
		return key, nil
	}

	key, err := decryptCredentials()
	if err != nil {
		log.Debug().Err(err).Msg("No API key in GPG credentials")
		return "", fmt.Errorf("%w (%v)", ErrNoKey, err)
	}
	if key == "" {
		return "", ErrNoKey
	}
	log.Debug().Str("source", "gpg").Msg("Using API key")
	return key, nil
}

// decryptCredentials shells out to gpg for the credentials file.
func decryptCredentials() (string, error) {
	credPath, err := credentialPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(credPath); err != nil {
		return "", fmt.Errorf("credentials file %s: %w", credPath, err)
	}

	args := []string{"--decrypt", "--quiet"}
	if pass, ok := passphraseFile(); ok {
		args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", pass)
	}
	args = append(args, credPath)

	out, err := exec.Command("gpg", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("gpg decrypt failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("gpg decrypt failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func credentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, credentialFile), nil
}

// passphraseFile returns the configured passphrase file if it exists and is
// readable only by its owner.
func passphraseFile() (string, bool) {
	path := os.Getenv(EnvPassphraseFile)
	if path == "" {
		return "", false
	}
	fi, err := os.Stat(path)
	if err != nil {
		log.Warn().Err(err).Str("passphrase_file", path).Msg("Passphrase file not readable; skipping")
		return "", false
	}
	if mode := fi.Mode().Perm(); mode&0o077 != 0 {
		log.Warn().
			Str("passphrase_file", path).
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Msg("Passphrase file has insecure permissions (should be 0600); skipping")
		return "", false
	}
	return path, true
}
