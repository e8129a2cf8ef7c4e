// Package category resolves Plaid personal finance categories to the
// internal category taxonomy.
package category

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/ryanuber/go-glob"
	"gorm.io/gorm"
)

const wildcardKey = "*wildcards"

// missTTL caps how long a label without a mapping is cached, new mappings
// apply after at most this long.
var missTTL = time.Minute

// Mapper looks up the internal category for a Plaid category label.
//
// Lookups never fail. Anything that goes wrong is logged and the
// transaction is treated as unmapped, categorization must not block
// ingestion.
type Mapper struct {
	db    *gorm.DB
	cache *cache.Cache
	ttl   time.Duration
}

// NewMapper creates a Mapper. Mapped labels are cached for ttl, labels
// without a mapping for at most a minute. A ttl of 0 disables caching.
func NewMapper(db *gorm.DB, ttl time.Duration) *Mapper {
	m := &Mapper{db: db, ttl: ttl}
	if ttl > 0 {
		m.cache = cache.New(ttl, 2*ttl)
	}
	return m
}

// WithDB returns a Mapper that queries through db and shares the cache.
// Used to resolve categories inside a database transaction.
func (m *Mapper) WithDB(db *gorm.DB) *Mapper {
	return &Mapper{db: db, cache: m.cache, ttl: m.ttl}
}

// Invalidate drops all cached lookups.
func (m *Mapper) Invalidate() {
	if m.cache != nil {
		m.cache.Flush()
	}
}

// FlushOn invalidates the cache for every signal received until ctx is
// done. Operators send it after editing mappings in the database.
func (m *Mapper) FlushOn(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			log.Info().Str("signal", sig.String()).Msg("flushing category cache")
			m.Invalidate()
		}
	}
}

func (m *Mapper) missExpiry() time.Duration {
	return min(m.ttl, missTTL)
}

// Resolve returns the ID of the category mapped to the detailed label, or
// nil if there is none. The primary label is informational only.
func (m *Mapper) Resolve(ctx context.Context, primary, detailed string) *uuid.UUID {
	key := strings.ToUpper(strings.TrimSpace(detailed))
	if key == "" {
		return nil
	}

	if m.cache != nil {
		if cached, ok := m.cache.Get(key); ok {
			return idOrNil(cached.(uuid.UUID))
		}
	}

	id, err := m.lookup(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("primary", primary).Str("detailed", key).Msg("category lookup failed, transaction stays unmapped")
		return nil
	}

	if m.cache != nil {
		if id == uuid.Nil {
			m.cache.Set(key, id, m.missExpiry())
		} else {
			m.cache.SetDefault(key, id)
		}
	}

	return idOrNil(id)
}

// lookup returns uuid.Nil when no mapping exists.
func (m *Mapper) lookup(ctx context.Context, detailed string) (uuid.UUID, error) {
	var mapping models.CategoryMapping
	err := m.db.WithContext(ctx).Where("detailed = ?", detailed).First(&mapping).Error
	if err == nil {
		return mapping.CategoryID, nil
	}

	if !errors.Is(err, models.ErrResourceNotFound) {
		return uuid.Nil, err
	}

	wildcards, err := m.wildcards(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	// Patterns are sorted longest first, the most specific one wins
	for _, w := range wildcards {
		if glob.Glob(w.Detailed, detailed) {
			return w.CategoryID, nil
		}
	}

	return uuid.Nil, nil
}

func (m *Mapper) wildcards(ctx context.Context) ([]models.CategoryMapping, error) {
	if m.cache != nil {
		if cached, ok := m.cache.Get(wildcardKey); ok {
			return cached.([]models.CategoryMapping), nil
		}
	}

	var mappings []models.CategoryMapping
	err := m.db.WithContext(ctx).Where("detailed LIKE ?", "%*%").Find(&mappings).Error
	if err != nil {
		return nil, err
	}

	sort.SliceStable(mappings, func(i, j int) bool {
		return len(mappings[i].Detailed) > len(mappings[j].Detailed)
	})

	// Only consulted on misses, so it expires with them
	if m.cache != nil {
		m.cache.Set(wildcardKey, mappings, m.missExpiry())
	}

	return mappings, nil
}

func idOrNil(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
