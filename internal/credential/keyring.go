// Package credential stores secrets (the mailbox password and the AI API
// key) in the system keyring, with an environment-variable override for
// headless setups.
package credential

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "mailassist"

// Well-known credential keys.
const (
	KeyMailPassword = "mail-password"
	KeyAnthropicAPI = "anthropic-api-key"
)

// envOverrides maps credential keys to environment variables that take
// precedence over the keyring when set.
var envOverrides = map[string]string{
	KeyMailPassword: "MAILASSIST_MAIL_PASSWORD",
	KeyAnthropicAPI: "ANTHROPIC_API_KEY",
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailassist/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailassist-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key. An environment override, when
// present and non-empty, wins over the keyring.
func Get(key string) (string, error) {
	if env, ok := envOverrides[key]; ok {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}

	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
