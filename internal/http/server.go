package http

import (
	"container/list"
	"context"
	"net/http"
	"sync"
	"time"

	"reportal/internal/aggregate"
	"reportal/internal/currency"
	"reportal/internal/export"
	"reportal/internal/middleware/trace"
	"reportal/internal/services"
	"reportal/internal/zones"
)

// LRU cache with TTL and size-based eviction
type lruCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

func newLRUCache[T any](maxSize int, ttl time.Duration) *lruCache[T] {
	return &lruCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (c *lruCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

func (c *lruCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Purge drops every entry. Called after any write so reports never show
// stale aggregates.
func (c *lruCache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.lru.Init()
}

func (c *lruCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

type Server struct {
	http.Server

	records   *services.RecordService
	engine    *aggregate.Engine
	rates     *currency.Table
	zones     *zones.Map
	publisher export.Publisher

	resultCache *lruCache[aggregate.Result]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. The publisher may be nil, in which case export targets
// other than file download return an error.
func NewServer(addr string, records *services.RecordService, engine *aggregate.Engine, rates *currency.Table, zmap *zones.Map, publisher export.Publisher) *Server {
	mux := http.NewServeMux()

	s := &Server{
		records:     records,
		engine:      engine,
		rates:       rates,
		zones:       zmap,
		publisher:   publisher,
		resultCache: newLRUCache[aggregate.Result](200, 5*time.Minute),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/records", s.handleRecords)
	mux.HandleFunc("/api/records/", s.handleRecordByID)
	mux.HandleFunc("/api/aggregate", s.handleAggregate)
	mux.HandleFunc("/api/rank", s.handleRank)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/template", s.handleTemplate)
	mux.HandleFunc("/api/rates", s.handleRates)
	mux.HandleFunc("/api/rates/reload", s.handleRatesReload)
	mux.HandleFunc("/api/periods", s.handlePeriods)
	mux.HandleFunc("/api/kinds", s.handleKinds)
	mux.HandleFunc("/api/zones", s.handleZones)

	traceMW := trace.NewMiddleware(clientIP)
	s.Server = http.Server{
		Addr:    addr,
		Handler: traceMW.Middleware(mux),
	}

	return s
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// Shutdown stops the HTTP server and closes the record service.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
