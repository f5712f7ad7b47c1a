package security

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CORS 仅允许白名单中的 Origin。作答页通过 Authorization 头或 ?token= 传递令牌
func CORS(allowedOrigins []string) gin.HandlerFunc {
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		h := c.Writer.Header()
		if origin != "" && originSet[origin] {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Expose-Headers", "Retry-After")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Secure 安全响应头。作答状态与题目内容不允许被中间代理或浏览器缓存
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		if c.Request.Method != http.MethodOptions {
			c.Header("Cache-Control", "no-store")
		}
		c.Next()
	}
}

// KeyFunc 限流维度。返回空串时不限流
type KeyFunc func(c *gin.Context) string

// ByClientIP 按来源 IP 限流
func ByClientIP(c *gin.Context) string { return c.ClientIP() }

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter 按 key 分桶的令牌桶，长时间未出现的 key 会被清理
type Limiter struct {
	name  string
	every rate.Limit
	burst int
	key   KeyFunc

	mu    sync.Mutex
	store map[string]*visitor
	now   func() time.Time
}

// NewLimiter 每个 key 在 window 内最多 maxRequests 次请求
func NewLimiter(name string, maxRequests int, window time.Duration, key KeyFunc) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if key == nil {
		key = ByClientIP
	}
	return &Limiter{
		name:  name,
		every: rate.Every(window / time.Duration(maxRequests)),
		burst: maxRequests,
		key:   key,
		store: make(map[string]*visitor),
		now:   time.Now,
	}
}

func (l *Limiter) allow(k string) (bool, time.Duration) {
	l.mu.Lock()
	v, ok := l.store[k]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.store[k] = v
	}
	now := l.now()
	v.lastSeen = now
	l.mu.Unlock()

	r := v.limiter.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Sweep 删除 idle 时长内未出现的 key
func (l *Limiter) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	n := 0
	for k, v := range l.store {
		if v.lastSeen.Before(cutoff) {
			delete(l.store, k)
			n++
		}
	}
	return n
}

// Middleware 超限时返回 429 并给出 Retry-After 秒数
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		k := l.key(c)
		if k == "" {
			c.Next()
			return
		}
		ok, wait := l.allow(k)
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "too many " + l.name + " requests",
			})
			return
		}
		c.Next()
	}
}

// RateLimiter 按 IP 的全局限流，后台定期清理过期条目
func RateLimiter(maxRequests int, window time.Duration) gin.HandlerFunc {
	l := NewLimiter("api", maxRequests, window, ByClientIP)
	go sweepLoop(l, window)
	return l.Middleware()
}

func sweepLoop(l *Limiter, window time.Duration) {
	expiry := window * 3
	if expiry < time.Minute {
		expiry = time.Minute
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.Sweep(expiry)
	}
}

// KeyedRateLimiter 与 RateLimiter 相同，但按调用方提供的维度分桶（例如学员 ID）
func KeyedRateLimiter(name string, maxRequests int, window time.Duration, key KeyFunc) gin.HandlerFunc {
	l := NewLimiter(name, maxRequests, window, key)
	go sweepLoop(l, window)
	return l.Middleware()
}
