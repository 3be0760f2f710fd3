package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter представляет rate limiter на основе токен-бакета (token bucket)
type RateLimiter struct {
	now      func() time.Time
	buckets  map[string]*bucket
	cleanupC chan struct{}
	stopOnce sync.Once
	rate     int
	window   time.Duration
	mu       sync.RWMutex
}

// bucket представляет bucket для конкретного IP/ключа
type bucket struct {
	lastRefill time.Time
	tokens     int
	mu         sync.Mutex
}

// NewRateLimiter создает новый rate limiter
// rate - максимальное количество запросов за window
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		now:      time.Now,
		buckets:  make(map[string]*bucket),
		rate:     rate,
		window:   window,
		cleanupC: make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// cleanup периодически удаляет неактивные buckets
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupOldBuckets()
		case <-rl.cleanupC:
			return
		}
	}
}

// cleanupOldBuckets удаляет buckets, которые не использовались дольше 2*window
func (rl *RateLimiter) cleanupOldBuckets() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastRefill) > rl.window*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// Stop останавливает cleanup goroutine. Повторный вызов безопасен.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.cleanupC) })
}

// Allow проверяет, разрешен ли запрос для данного ключа (обычно IP адрес)
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Повторная проверка: bucket мог создать параллельный запрос
		if b, exists = rl.buckets[key]; !exists {
			b = &bucket{
				tokens:     rl.rate,
				lastRefill: rl.now(),
			}
			rl.buckets[key] = b
		}
		rl.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := rl.now()
	if now.Sub(b.lastRefill) >= rl.window {
		b.tokens = rl.rate
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}

	return false
}

// PathRateLimit - лимит для конкретного пути
type PathRateLimit struct {
	Path   string
	Rate   int
	Window time.Duration
}

// PathLimiter ограничивает частоту запросов к выбранным путям.
// Остальные пути не ограничиваются.
type PathLimiter struct {
	logger   *slog.Logger
	limiters map[string]*RateLimiter
	windows  map[string]time.Duration
}

// NewPathLimiter создает limiter с отдельным бакетом для каждого пути
func NewPathLimiter(limits []PathRateLimit, logger *slog.Logger) *PathLimiter {
	pl := &PathLimiter{
		logger:   logger,
		limiters: make(map[string]*RateLimiter, len(limits)),
		windows:  make(map[string]time.Duration, len(limits)),
	}
	for _, limit := range limits {
		pl.limiters[limit.Path] = NewRateLimiter(limit.Rate, limit.Window)
		pl.windows[limit.Path] = limit.Window
	}
	return pl
}

// Middleware возвращает http middleware
func (pl *PathLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter, exists := pl.limiters[r.URL.Path]
		if !exists {
			next.ServeHTTP(w, r)
			return
		}

		key := getClientIP(r)
		if !limiter.Allow(key) {
			pl.logger.WarnContext(r.Context(), "Rate limit exceeded",
				slog.String("ip", key),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			w.Header().Set("Retry-After", strconv.Itoa(int(pl.windows[r.URL.Path].Seconds())))
			writeError(w, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Stop останавливает все limiters
func (pl *PathLimiter) Stop() {
	for _, l := range pl.limiters {
		l.Stop()
	}
}

// getClientIP извлекает IP адрес клиента из запроса
// Проверяет заголовки X-Forwarded-For и X-Real-IP для прокси
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Первый IP в списке - реальный клиент
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Порт у каждого соединения свой, ключом служит только хост
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
