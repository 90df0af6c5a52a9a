package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name secrets are stored under.
const KeyringService = "resolution"

var (
	// ErrSecretNotFound is returned when neither the environment nor the
	// keyring holds the secret.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrKeyringUnavailable is returned when the OS keyring cannot be used.
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// SecretResolver looks secrets up in the environment first
// (RESOLUTION_SECRET_<NAME>) and then in the OS keyring.
type SecretResolver struct {
	service string
	getenv  func(string) string
}

func NewSecretResolver() *SecretResolver {
	return &SecretResolver{service: KeyringService, getenv: os.Getenv}
}

// EnvName is the environment variable consulted for a secret.
func EnvName(name string) string {
	r := strings.NewReplacer("-", "_", ".", "_", " ", "_")
	return "RESOLUTION_SECRET_" + strings.ToUpper(r.Replace(name))
}

func (r *SecretResolver) Get(name string) (string, error) {
	if v := r.getenv(EnvName(name)); v != "" {
		return v, nil
	}
	v, err := keyring.Get(r.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

func (r *SecretResolver) Set(name, value string) error {
	if name == "" || value == "" {
		return errors.New("secret name and value cannot be empty")
	}
	if err := keyring.Set(r.service, name, value); err != nil {
		return fmt.Errorf("failed to store secret in keyring: %w", err)
	}
	return nil
}

func (r *SecretResolver) Delete(name string) error {
	if err := keyring.Delete(r.service, name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return fmt.Errorf("failed to delete secret from keyring: %w", err)
	}
	return nil
}
