// File: internal/secrets/vault.go
// Brief: Vault-backed RemoteStore.

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	vault "github.com/hashicorp/vault/api"
	"gopkg.in/yaml.v3"
)

// LoadVaultConfig reads a vault store configuration file. Address and token
// fall back to the standard VAULT_ADDR / VAULT_TOKEN variables when the file
// leaves them blank.
func LoadVaultConfig(path string) (VaultConfig, error) {
	var cfg VaultConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read vault config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse vault config %s: %w", path, err)
	}
	if cfg.Address == "" {
		cfg.Address = os.Getenv("VAULT_ADDR")
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("VAULT_TOKEN")
	}
	return cfg, nil
}

// VaultConfig holds the connection settings for a Vault KV v2 mount used as
// the remote secret store.
type VaultConfig struct {
	Address   string `yaml:"address" mapstructure:"address"`
	Token     string `yaml:"token" mapstructure:"token"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	Mount     string `yaml:"mount" mapstructure:"mount"`
}

// VaultStore implements RemoteStore over a Vault KV v2 mount. Each provider
// secret name is a path under the mount holding a "value" key.
type VaultStore struct {
	client *vault.Client
	mount  string
}

// NewVaultStore builds a vault client from config.
func NewVaultStore(cfg VaultConfig) (*VaultStore, error) {
	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return nil, fmt.Errorf("vault address is required")
	}
	apiCfg := vault.DefaultConfig()
	apiCfg.Address = address
	client, err := vault.NewClient(apiCfg)
	if err != nil {
		return nil, err
	}
	if ns := strings.TrimSpace(cfg.Namespace); ns != "" {
		client.SetNamespace(ns)
	}
	if token := strings.TrimSpace(cfg.Token); token != "" {
		client.SetToken(token)
	}
	mount := strings.Trim(strings.TrimSpace(cfg.Mount), "/")
	if mount == "" {
		mount = "secret"
	}
	return &VaultStore{client: client, mount: mount}, nil
}

// FetchSecret reads the named secret and returns its "value" entry, or the
// sole entry when the secret holds exactly one key.
func (s *VaultStore) FetchSecret(ctx context.Context, name string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("vault store is not initialized")
	}
	path := strings.Trim(strings.TrimSpace(name), "/")
	if path == "" {
		return "", fmt.Errorf("secret name is required")
	}
	secret, err := s.client.KVv2(s.mount).Get(ctx, path)
	if err != nil {
		return "", err
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret %q not found", name)
	}
	if raw, ok := secret.Data["value"]; ok {
		return coerceString(raw)
	}
	if len(secret.Data) == 1 {
		for _, raw := range secret.Data {
			return coerceString(raw)
		}
	}
	return "", fmt.Errorf("secret %q has no \"value\" key", name)
}

func coerceString(raw interface{}) (string, error) {
	switch typed := raw.(type) {
	case string:
		return typed, nil
	case []byte:
		return string(typed), nil
	default:
		return "", fmt.Errorf("secret value must be a string")
	}
}
