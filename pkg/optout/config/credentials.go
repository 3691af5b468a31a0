package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name; the account is the sender address.
const KeyringService = "optout"

// ResolveCredential returns the relay password from the first source that
// yields one: inline value, environment variable, file, then OS keyring.
func (p *Profile) ResolveCredential() (string, error) {
	if p.SenderCredential != "" {
		return p.SenderCredential, nil
	}
	if p.GmailAppPassword != "" {
		return p.GmailAppPassword, nil
	}
	if p.SenderCredentialEnv != "" {
		if v := os.Getenv(p.SenderCredentialEnv); v != "" {
			return v, nil
		}
	}
	if p.SenderCredentialFile != "" {
		content, err := os.ReadFile(p.SenderCredentialFile)
		if err != nil {
			return "", fmt.Errorf("%w: profile %s: read credential file: %w", ErrConfig, p.Name, err)
		}
		if v := strings.TrimSpace(string(content)); v != "" {
			return v, nil
		}
	}
	if p.SenderCredentialKeyring {
		v, err := keyring.Get(KeyringService, p.Sender())
		switch {
		case errors.Is(err, keyring.ErrNotFound):
		case err != nil:
			return "", fmt.Errorf("%w: profile %s: keyring: %w", ErrConfig, p.Name, err)
		case v != "":
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: profile %s has no sender credential", ErrConfig, p.Name)
}

// StoreCredential saves the relay password for sender in the OS keyring.
func StoreCredential(sender, secret string) error {
	if sender == "" || secret == "" {
		return fmt.Errorf("%w: sender and credential are required", ErrConfig)
	}
	return keyring.Set(KeyringService, sender, secret)
}
