package pagecache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ButyrinIA/yatube/internal/monitoring"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Backend хранит готовые ответы. Запись живет ttl с момента Set.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// Cache - кеш отрендеренных страниц с ограниченной устареваемостью.
// Записи в хранилище его не сбрасывают: свежесть до истечения ttl
// дает только Invalidate.
type Cache struct {
	backend Backend
	ttl     time.Duration
	flights singleflight.Group
	// generation растет при каждом Invalidate; результат вычисления,
	// начатого до сброса, в кеш не попадает
	generation atomic.Uint64
	// mu делает проверку поколения и Set атомарными относительно Invalidate
	mu sync.RWMutex
}

func New(backend Backend, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	return &Cache{backend: backend, ttl: ttl}, nil
}

// GetOrCompute отдает закешированное значение как есть, иначе синхронно
// вычисляет и сохраняет его. Одновременные промахи по одному ключу
// выполняют compute один раз.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	logger := log.WithField("key", key)

	value, ok, err := c.backend.Get(ctx, key)
	switch {
	case err != nil:
		monitoring.PageCacheRequests.WithLabelValues("error").Inc()
		logger.WithError(err).Warn("page cache read failed")
	case ok:
		monitoring.PageCacheRequests.WithLabelValues("hit").Inc()
		logger.Debug("page cache hit")
		return value, nil
	default:
		monitoring.PageCacheRequests.WithLabelValues("miss").Inc()
		logger.Debug("page cache miss")
	}

	gen := c.generation.Load()
	flightKey := strconv.FormatUint(gen, 10) + "|" + key
	// отмена запроса первого клиента не прерывает общее вычисление
	flightCtx := context.WithoutCancel(ctx)
	result, err, _ := c.flights.Do(flightKey, func() (any, error) {
		value, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		c.store(flightCtx, logger, gen, key, value)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Cache) store(ctx context.Context, logger *log.Entry, gen uint64, key string, value []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.generation.Load() != gen {
		logger.Debug("page cache invalidated during compute, result not stored")
		return
	}
	if err := c.backend.Set(ctx, key, value, c.ttl); err != nil {
		logger.WithError(err).Warn("page cache write failed")
		return
	}
	logger.WithField("ttl", c.ttl).Debug("page cache stored")
}

// Invalidate сразу удаляет все записи
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation.Add(1)
	if err := c.backend.Clear(ctx); err != nil {
		return fmt.Errorf("failed to invalidate page cache: %w", err)
	}
	monitoring.PageCacheInvalidations.Inc()
	log.Info("page cache invalidated")
	return nil
}
