// File: internal/secrets/orchestrator.go
// Brief: Cache-first secret loading with optional remote augmentation.

// Package secrets orchestrates the launcher's secret pipeline: it wraps the
// envfile resolver behind the cache store's fast path, optionally augments
// missing keys from a remote store, and writes the final map into the
// process environment through an injected sink. Missing or invalid secrets
// degrade to warnings so a local environment is never blocked at startup.
package secrets

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/example/devup/internal/cachestore"
	"github.com/example/devup/internal/envfile"
)

// Options configure the orchestrator.
type Options struct {
	Chain        *envfile.Chain
	Cache        *cachestore.Store
	Sink         EnvSink
	Remote       RemoteStore // nil disables augmentation
	RequiredKeys []string
	Logger       *zap.Logger
}

// Report is the outcome of LoadAll. Success is always true: incompleteness
// degrades to warnings.
type Report struct {
	Success    bool
	FromCache  bool
	Entries    map[string]envfile.Entry
	Validation envfile.ValidationResult
	Warnings   []string
}

// Orchestrator drives the secret pipeline once per launcher invocation.
type Orchestrator struct {
	chain    *envfile.Chain
	cache    *cachestore.Store
	sink     EnvSink
	remote   RemoteStore
	required []string
	logger   *zap.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := opts.Sink
	if sink == nil {
		sink = OSEnv{}
	}
	required := append([]string(nil), opts.RequiredKeys...)
	sort.Strings(required)
	return &Orchestrator{
		chain:    opts.Chain,
		cache:    opts.Cache,
		sink:     sink,
		remote:   opts.Remote,
		required: required,
		logger:   logger,
	}
}

// LoadAll resolves the full secret map and writes it into the environment.
// The fast path serves entirely from cache when the tracked source files are
// unchanged and every required key is cached valid.
func (o *Orchestrator) LoadAll(ctx context.Context) Report {
	report := Report{Success: true}

	if cached, ok := o.tryCache(ctx); ok {
		report.FromCache = true
		report.Entries = cached
		report.Validation = envfile.Validate(cached, o.required)
		report.Warnings = append(report.Warnings, report.Validation.Warnings...)
		o.writeEnv(cached, &report)
		return report
	}

	entries := envfile.Resolve(o.chain.Load(), o.logger)
	validation := envfile.Validate(entries, o.required)

	if len(validation.MissingKeys) > 0 {
		if o.remote != nil {
			o.augmentFromRemote(ctx, entries, validation.MissingKeys, &report)
			validation = envfile.Validate(entries, o.required)
		} else {
			for _, key := range validation.MissingKeys {
				report.Warnings = append(report.Warnings, remediationFor(key))
			}
		}
	}
	for _, key := range validation.InvalidKeys {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%s has a placeholder or empty value; edit %s", key, o.chain.EnvLocalFile))
	}
	report.Warnings = append(report.Warnings, validation.Warnings...)

	report.Entries = entries
	report.Validation = validation
	o.writeEnv(entries, &report)
	o.persist(ctx, entries, validation)
	return report
}

func (o *Orchestrator) tryCache(ctx context.Context) (map[string]envfile.Entry, bool) {
	if o.cache == nil {
		return nil, false
	}
	changed, err := o.cache.HasSourceFilesChanged(ctx, o.chain.SourceFiles())
	if err != nil {
		o.logger.Warn("cache check failed", zap.Error(err))
		return nil, false
	}
	if changed {
		if err := o.cache.InvalidateSecrets(ctx); err != nil {
			o.logger.Warn("cache invalidation failed", zap.Error(err))
		}
		return nil, false
	}
	records, err := o.cache.All(ctx)
	if err != nil || len(records) == 0 {
		return nil, false
	}
	for _, key := range o.required {
		rec, ok := records[key]
		if !ok || !rec.Valid {
			return nil, false
		}
	}
	entries := make(map[string]envfile.Entry, len(records))
	for key, rec := range records {
		entries[key] = envfile.Entry{Key: key, Value: rec.Value, Source: envfile.Source(rec.Source)}
	}
	o.logger.Debug("secret cache hit", zap.Int("keys", len(entries)))
	return entries, true
}

// augmentFromRemote fetches only the missing keys that have a provider-side
// mapping. Local values are never overwritten; each fetch failure is
// collected and the remaining fetches continue.
func (o *Orchestrator) augmentFromRemote(ctx context.Context, entries map[string]envfile.Entry, missing []string, report *Report) {
	for _, key := range missing {
		if _, exists := entries[key]; exists {
			continue
		}
		name, ok := secretNameFor(key)
		if !ok {
			report.Warnings = append(report.Warnings, remediationFor(key))
			continue
		}
		value, err := o.remote.FetchSecret(ctx, name)
		if err != nil {
			wrapped := errors.Wrapf(err, "fetch remote secret %s for %s", name, key)
			o.logger.Warn("remote secret fetch failed", zap.String("key", key), zap.Error(err))
			report.Warnings = append(report.Warnings, wrapped.Error())
			continue
		}
		entries[key] = envfile.Entry{Key: key, Value: value, Source: envfile.SourceRemote}
	}
}

func (o *Orchestrator) writeEnv(entries map[string]envfile.Entry, report *Report) {
	if err := o.sink.SetAll(envfile.Values(entries)); err != nil {
		o.logger.Warn("environment write failed", zap.Error(err))
		report.Warnings = append(report.Warnings, fmt.Sprintf("environment write failed: %v", err))
	}
}

func (o *Orchestrator) persist(ctx context.Context, entries map[string]envfile.Entry, validation envfile.ValidationResult) {
	if o.cache == nil || !validation.IsValid {
		return
	}
	for _, key := range sortedKeys(entries) {
		entry := entries[key]
		rec := cachestore.Record{
			Key:    key,
			Value:  entry.Value,
			Source: string(entry.Source),
			Valid:  true,
		}
		if err := o.cache.Put(ctx, rec, cachestore.DefaultTTL); err != nil {
			o.logger.Warn("cache persist failed", zap.String("key", key), zap.Error(err))
			return
		}
	}
	if err := o.cache.TrackFiles(ctx, o.chain.SourceFiles()); err != nil {
		o.logger.Warn("tracked-file digest update failed", zap.Error(err))
	}
}

func remediationFor(key string) string {
	return fmt.Sprintf("%s is not set; add it to .env.local or export it before running devup", key)
}

func sortedKeys(entries map[string]envfile.Entry) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
