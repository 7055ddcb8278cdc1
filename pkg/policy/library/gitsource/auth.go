package gitsource

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"mercator-hq/charter/pkg/config"
)

// AuthProvider supplies git transport credentials.
type AuthProvider interface {
	// Auth returns the transport auth method, or nil for anonymous access.
	Auth() (transport.AuthMethod, error)

	// Type names the provider for logs.
	Type() string
}

// TokenAuth authenticates HTTPS remotes with a personal access token.
type TokenAuth struct {
	token string
}

// Auth implements AuthProvider.
func (a *TokenAuth) Auth() (transport.AuthMethod, error) {
	if a.token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}
	// Hosts ignore the username for token auth.
	return &http.BasicAuth{Username: "git", Password: a.token}, nil
}

// Type implements AuthProvider.
func (a *TokenAuth) Type() string { return "token" }

// SSHAuth authenticates with a private key file.
type SSHAuth struct {
	keyPath    string
	passphrase string
}

// Auth implements AuthProvider. The key file must not be readable by group
// or others.
func (a *SSHAuth) Auth() (transport.AuthMethod, error) {
	info, err := os.Stat(a.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access SSH key file: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return nil, fmt.Errorf("SSH key file permissions too open (%o), should be 0600", mode)
	}

	auth, err := ssh.NewPublicKeysFromFile("git", a.keyPath, a.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key: %w", err)
	}
	return auth, nil
}

// Type implements AuthProvider.
func (a *SSHAuth) Type() string { return "ssh" }

// NoAuth is used for public repositories.
type NoAuth struct{}

// Auth implements AuthProvider.
func (NoAuth) Auth() (transport.AuthMethod, error) { return nil, nil }

// Type implements AuthProvider.
func (NoAuth) Type() string { return "none" }

// NewAuthProvider builds the provider named by cfg.Type.
func NewAuthProvider(cfg config.GitAuthConfig) (AuthProvider, error) {
	switch cfg.Type {
	case "token":
		if cfg.Token == "" {
			return nil, fmt.Errorf("token auth requires non-empty token")
		}
		return &TokenAuth{token: cfg.Token}, nil
	case "ssh":
		if cfg.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh auth requires ssh_key_path")
		}
		return &SSHAuth{keyPath: cfg.SSHKeyPath, passphrase: cfg.SSHKeyPassphrase}, nil
	case "none", "":
		return NoAuth{}, nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
}
