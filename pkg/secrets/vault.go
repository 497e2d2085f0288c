package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/smartcare/backend/pkg/retry"
)

// VaultConfig locates a KV secret whose keys are configuration variable
// names, e.g. DB_PASSWORD or REDIS_PASSWORD
type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	Overwrite bool
}

// VaultConfigFromEnv reads the VAULT_* variables through lookup
func VaultConfigFromEnv(lookup func(string) string) VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(lookup("VAULT_ENABLED"), "true"),
		Addr:      lookup("VAULT_ADDR"),
		Token:     lookup("VAULT_TOKEN"),
		Namespace: lookup("VAULT_NAMESPACE"),
		Mount:     lookup("VAULT_MOUNT"),
		Path:      lookup("VAULT_PATH"),
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(lookup("VAULT_OVERWRITE"), "true"),
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if v, err := strconv.Atoi(lookup("VAULT_KV_VERSION")); err == nil && v > 0 {
		cfg.KVVersion = v
	}
	if ms, err := strconv.Atoi(lookup("VAULT_TIMEOUT_MS")); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// Fetch reads the secret and returns its keys as strings. Transient failures
// are retried with the startup backoff.
func Fetch(ctx context.Context, cfg VaultConfig) (map[string]string, error) {
	if cfg.Addr == "" || cfg.Token == "" || cfg.Path == "" {
		return nil, errors.New("vault configuration incomplete (VAULT_ADDR, VAULT_TOKEN, VAULT_PATH)")
	}
	url, err := secretURL(cfg.Addr, cfg.Mount, cfg.Path, cfg.KVVersion)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: cfg.Timeout}

	var out map[string]string
	err = retry.DoWithLog(ctx, retry.DefaultConfig(), "Vault", func() error {
		out, err = fetchOnce(ctx, client, url, cfg)
		return err
	}, func(attempt int, err error, next time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", next).Msg("Vault read failed")
	})
	return out, err
}

func fetchOnce(ctx context.Context, client *http.Client, url string, cfg VaultConfig) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", cfg.Token)
	if cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", cfg.Namespace)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vault read %s: %s %s", cfg.Path, resp.Status, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	data := payload.Data
	if cfg.KVVersion != 1 {
		// KV v2 nests the values one level deeper
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(data["data"], &inner); err != nil || inner == nil {
			return nil, errors.New("vault response missing data for KV v2")
		}
		data = inner
	}
	if data == nil {
		return nil, errors.New("vault response missing data")
	}

	out := make(map[string]string, len(data))
	for k, raw := range data {
		out[k] = rawString(raw)
	}
	return out, nil
}

// Lookup returns env unchanged unless VAULT_ENABLED is set, in which case the
// Vault secret is layered over it
func Lookup(ctx context.Context, env func(string) string) (func(string) string, error) {
	cfg := VaultConfigFromEnv(env)
	if !cfg.Enabled {
		return env, nil
	}
	data, err := Fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.Path).Int("keys", len(data)).Msg("Loaded configuration secrets from Vault")
	return Overlay(data, env, cfg.Overwrite), nil
}

// Overlay returns a lookup that consults secrets before or after env.
// With overwrite false, a non-empty environment value wins.
func Overlay(secrets map[string]string, env func(string) string, overwrite bool) func(string) string {
	return func(key string) string {
		v, ok := secrets[key]
		if !ok {
			return env(key)
		}
		if !overwrite {
			if e := env(key); e != "" {
				return e
			}
		}
		return v
	}
}

func secretURL(addr, mount, path string, kvVersion int) (string, error) {
	addr = strings.TrimRight(addr, "/")
	mount = strings.Trim(mount, "/")
	path = strings.TrimLeft(path, "/")
	if addr == "" || mount == "" || path == "" {
		return "", errors.New("vault address, mount, and path must be set")
	}
	if kvVersion == 1 {
		return fmt.Sprintf("%s/v1/%s/%s", addr, mount, path), nil
	}
	return fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path), nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}
