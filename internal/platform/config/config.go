package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPolicyFile       = "sync.yaml"
	defaultHTTPTimeout      = 30 * time.Second
	defaultRetryMax         = 4
	defaultRetryBaseDelay   = 500 * time.Millisecond
	defaultRequestsPerSec   = 2.0
	defaultCommercePageSize = 100
	defaultLedgerPath       = ".catalogsync/ledger.json"
	defaultLedgerTTL        = 30 * 24 * time.Hour
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Content  ContentConfig
	Commerce CommerceConfig
	HTTP     HTTPConfig
	Ledger   LedgerConfig
	Policy   PolicyConfig
}

// ContentConfig holds connection settings for the content store.
type ContentConfig struct {
	ProjectID string
	Dataset   string
	BaseURL   string
	APIToken  string
}

// CommerceConfig holds connection settings for the commerce store.
type CommerceConfig struct {
	ShopDomain  string
	APIVersion  string
	AccessToken string
	PageSize    int
}

// HTTPConfig controls the shared HTTP client behaviour for both adapters.
type HTTPConfig struct {
	Timeout        time.Duration
	RetryMax       int
	RetryBaseDelay time.Duration
	RequestsPerSec float64
}

// LedgerConfig controls the applied-change ledger used for idempotent re-runs.
type LedgerConfig struct {
	Path string
	TTL  time.Duration
}

// PolicyConfig points at the versioned reconciliation policy file.
type PolicyConfig struct {
	Path string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets failed to resolve.
type MissingSecretsError struct {
	secrets []missingSecret
}

type missingSecret struct {
	name     string
	redacted string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.secrets) == 0 {
		return "missing required secrets"
	}
	names := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		names = append(names, secret.redacted)
	}
	sort.Strings(names)
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(names, ", "))
}

// RedactedNames returns a copy of the redacted secret identifiers.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.redacted)
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the tool configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups. Both API tokens
// may be literal values or secret:// references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Content: ContentConfig{
			ProjectID: stringWithDefault(lookup, "SYNC_CONTENT_PROJECT_ID", ""),
			Dataset:   stringWithDefault(lookup, "SYNC_CONTENT_DATASET", "production"),
			BaseURL:   stringWithDefault(lookup, "SYNC_CONTENT_BASE_URL", ""),
			APIToken:  stringWithDefault(lookup, "SYNC_CONTENT_API_TOKEN", ""),
		},
		Commerce: CommerceConfig{
			ShopDomain:  stringWithDefault(lookup, "SYNC_COMMERCE_SHOP_DOMAIN", ""),
			APIVersion:  stringWithDefault(lookup, "SYNC_COMMERCE_API_VERSION", "2024-10"),
			AccessToken: stringWithDefault(lookup, "SYNC_COMMERCE_ACCESS_TOKEN", ""),
			PageSize:    intWithDefault(lookup, "SYNC_COMMERCE_PAGE_SIZE", defaultCommercePageSize),
		},
		HTTP: HTTPConfig{
			Timeout:        durationWithDefault(lookup, "SYNC_HTTP_TIMEOUT", defaultHTTPTimeout),
			RetryMax:       intWithDefault(lookup, "SYNC_HTTP_RETRY_MAX", defaultRetryMax),
			RetryBaseDelay: durationWithDefault(lookup, "SYNC_HTTP_RETRY_BASE_DELAY", defaultRetryBaseDelay),
			RequestsPerSec: floatWithDefault(lookup, "SYNC_HTTP_REQUESTS_PER_SEC", defaultRequestsPerSec),
		},
		Ledger: LedgerConfig{
			Path: stringWithDefault(lookup, "SYNC_LEDGER_PATH", defaultLedgerPath),
			TTL:  durationWithDefault(lookup, "SYNC_LEDGER_TTL", defaultLedgerTTL),
		},
		Policy: PolicyConfig{
			Path: stringWithDefault(lookup, "SYNC_POLICY_FILE", defaultPolicyFile),
		},
	}

	// Default the content base URL from the project id when unset.
	if cfg.Content.BaseURL == "" && cfg.Content.ProjectID != "" {
		cfg.Content.BaseURL = fmt.Sprintf("https://%s.api.sanity.io", cfg.Content.ProjectID)
	}

	secretFields := []struct {
		name  string
		field *string
	}{
		{"Content.APIToken", &cfg.Content.APIToken},
		{"Commerce.AccessToken", &cfg.Commerce.AccessToken},
	}
	missing := make([]missingSecret, 0, len(secretFields))
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
		if strings.TrimSpace(resolved) == "" {
			missing = append(missing, missingSecret{name: target.name, redacted: redactSecretName(target.name)})
		}
	}
	if len(missing) > 0 {
		return Config{}, &MissingSecretsError{secrets: missing}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" {
		return value, nil
	}
	if !isSecretReference(value) {
		return value, nil
	}
	if resolver == nil {
		normalized := normalizeSecretReference(value)
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	normalized := normalizeSecretReference(value)
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Content.ProjectID == "" && cfg.Content.BaseURL == "" {
		missing = append(missing, "Content.ProjectID")
	}
	if cfg.Content.Dataset == "" {
		missing = append(missing, "Content.Dataset")
	}
	if cfg.Commerce.ShopDomain == "" {
		missing = append(missing, "Commerce.ShopDomain")
	}
	if cfg.Commerce.PageSize <= 0 || cfg.Commerce.PageSize > 250 {
		missing = append(missing, "Commerce.PageSize")
	}
	if cfg.HTTP.Timeout <= 0 {
		missing = append(missing, "HTTP.Timeout")
	}
	if cfg.HTTP.RetryMax < 0 {
		missing = append(missing, "HTTP.RetryMax")
	}
	if cfg.HTTP.RequestsPerSec <= 0 {
		missing = append(missing, "HTTP.RequestsPerSec")
	}
	if strings.TrimSpace(cfg.Ledger.Path) == "" {
		missing = append(missing, "Ledger.Path")
	}
	if strings.TrimSpace(cfg.Policy.Path) == "" {
		missing = append(missing, "Policy.Path")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
