package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/internal/domain/repository"
	"HistPull/pkg/cache"
	"HistPull/pkg/logger"
)

// ResolveUseCase expands signal-name patterns into concrete signal
// names via the archive search endpoint. Resolution failure is fatal
// for the whole invocation since no signal list exists to iterate.
type ResolveUseCase struct {
	resolver repository.Resolver
	cache    cache.Service
	scope    string
	cacheTTL time.Duration
	log      *logger.Logger
}

func NewResolveUseCase(resolver repository.Resolver, log *logger.Logger) *ResolveUseCase {
	return &ResolveUseCase{resolver: resolver, log: log}
}

// WithCache enables search-result caching. scope keys entries to one
// backend so results never leak across archives.
func (uc *ResolveUseCase) WithCache(c cache.Service, scope string, ttl time.Duration) *ResolveUseCase {
	uc.cache = c
	uc.scope = scope
	uc.cacheTTL = ttl
	return uc
}

// wrapPattern anchors the pattern with leading and trailing wildcards
// so it matches anywhere inside a fully qualified signal name.
func wrapPattern(p string) string {
	return ".*" + p + ".*"
}

// Resolve expands every pattern and concatenates the matches in
// pattern-input order. Duplicate names across patterns are kept; the
// caller asked for each pattern's matches and gets exactly those.
// Zero total matches is a valid outcome here.
func (uc *ResolveUseCase) Resolve(ctx context.Context, patterns []string) ([]string, error) {
	var signals []string
	for _, p := range patterns {
		names, err := uc.lookup(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("resolve pattern %q: %w", p, err)
		}
		signals = append(signals, names...)
	}

	if uc.log != nil {
		uc.log.Debug("patterns resolved",
			logger.Int("patterns", len(patterns)),
			logger.Int("signals", len(signals)),
		)
	}
	return signals, nil
}

// ResolveOne requires the pattern to match exactly one signal.
func (uc *ResolveUseCase) ResolveOne(ctx context.Context, pattern string) (string, error) {
	names, err := uc.lookup(ctx, pattern)
	if err != nil {
		return "", fmt.Errorf("resolve pattern %q: %w", pattern, err)
	}
	switch len(names) {
	case 1:
		return names[0], nil
	case 0:
		return "", fmt.Errorf("%w: pattern %q", models.ErrNoMatch, pattern)
	default:
		return "", fmt.Errorf("%w: pattern %q matched %d signals (%s)",
			models.ErrAmbiguousMatch, pattern, len(names), preview(names, 5))
	}
}

func (uc *ResolveUseCase) lookup(ctx context.Context, pattern string) ([]string, error) {
	key := ""
	if uc.cache != nil {
		key = cache.GenerateKey("search", cache.HashKey(uc.scope+"|"+pattern))
		var cached []string
		if err := uc.cache.Get(ctx, key, &cached); err == nil {
			if uc.log != nil {
				uc.log.Debug("search cache_hit", logger.String("pattern", pattern))
			}
			return cached, nil
		}
		if uc.log != nil {
			uc.log.Debug("search cache_miss", logger.String("pattern", pattern))
		}
	}

	names, err := uc.resolver.Search(ctx, wrapPattern(pattern))
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, key, names, uc.cacheTTL); err != nil && uc.log != nil {
			uc.log.Warn("search cache set failed",
				logger.String("pattern", pattern),
				logger.Error(err),
			)
		}
	}
	return names, nil
}

func preview(names []string, max int) string {
	if len(names) <= max {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:max], ", ") + ", ..."
}
