// File: internal/secrets/remote.go
// Brief: Remote secret store interface and the static key mapping table.

package secrets

import "context"

// RemoteStore fetches a single secret by its provider-side name.
type RemoteStore interface {
	FetchSecret(ctx context.Context, name string) (string, error)
}

// remoteKeyTable maps provider secret names to the environment variables
// they populate. Augmentation only ever fetches keys from this table, and
// only when the local chain left them missing.
var remoteKeyTable = map[string]string{
	"openai-api-key":      "OPENAI_API_KEY",
	"anthropic-api-key":   "ANTHROPIC_API_KEY",
	"google-api-key":      "GOOGLE_API_KEY",
	"oauth-client-id":     "OAUTH_CLIENT_ID",
	"oauth-client-secret": "OAUTH_CLIENT_SECRET",
	"jwt-signing-key":     "JWT_SIGNING_KEY",
	"app-encryption-key":  "APP_ENCRYPTION_KEY",
	"redis-password":      "REDIS_PASSWORD",
}

// secretNameFor returns the provider secret name that populates envKey.
func secretNameFor(envKey string) (string, bool) {
	for name, key := range remoteKeyTable {
		if key == envKey {
			return name, true
		}
	}
	return "", false
}

// RemoteBackedKeys lists the environment variables that can be augmented
// from the remote store.
func RemoteBackedKeys() []string {
	out := make([]string, 0, len(remoteKeyTable))
	for _, key := range remoteKeyTable {
		out = append(out, key)
	}
	return out
}
