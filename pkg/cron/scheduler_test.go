package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/repository"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
	"github.com/FACorreiaa/statement-engine/pkg/metrics"
)

type parserCache struct{ cleared int }

func (p *parserCache) ClearCache() { p.cleared++ }

type failingStore struct{ template.Store }

func (failingStore) List(context.Context) ([]template.Template, error) {
	return nil, errors.New("store offline")
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(
		template.Template{Identifier: "a", BankName: "A"},
		template.Template{Identifier: "b", BankName: "B"},
	)
	cache := template.NewCache(store, nil)
	parsers := &parserCache{}
	m := metrics.New(prometheus.NewRegistry())

	_, err := cache.Get(ctx, "a")
	require.NoError(t, err)

	// A change made behind the cache's back.
	require.NoError(t, store.Save(ctx, template.Template{Identifier: "a", BankName: "A2"}))
	stale, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A", stale.BankName)

	s := NewScheduler(store, cache, parsers, nil).WithMetrics(m)
	assert.Equal(t, 2, s.RunNow(ctx))

	fresh, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A2", fresh.BankName)
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, 1, parsers.cleared)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRefreshes))
}

func TestRefresh_ListFails(t *testing.T) {
	cache := template.NewCache(repository.NewMemoryStore(), nil)
	s := NewScheduler(failingStore{}, cache, nil, nil)
	assert.Equal(t, 0, s.Refresh(context.Background()))
}

func TestStart_InvalidSpec(t *testing.T) {
	s := NewScheduler(repository.NewMemoryStore(), template.NewCache(repository.NewMemoryStore(), nil), nil, nil)
	assert.Error(t, s.Start("not a schedule"))

	require.NoError(t, s.Start("@every 1h"))
	<-s.Stop().Done()
}
