package assessment

import (
	"sync"
	"time"
)

// Countdown 倒计时原语：整卷限时和单题限时共用。
// Stop 之后不会再触发 onExpire；Reset 会让之前排队的回调失效。
// onExpire 在倒计时锁之外执行，期间可能已经 Reset；调用方持锁后用 Current 确认收到的代次。
type Countdown struct {
	mu       sync.Mutex
	clock    Clock
	duration time.Duration
	onExpire func(gen uint64)

	timer    Timer
	deadline time.Time
	running  bool
	expired  bool
	gen      uint64
}

func NewCountdown(clock Clock, d time.Duration, onExpire func(gen uint64)) *Countdown {
	if clock == nil {
		clock = RealClock
	}
	return &Countdown{clock: clock, duration: d, onExpire: onExpire}
}

// Start 等同于 Reset，从完整时长重新计时
func (c *Countdown) Start() { c.Reset() }

func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.gen++
	gen := c.gen
	c.running = true
	c.expired = false
	c.deadline = c.clock.Now().Add(c.duration)
	c.timer = c.clock.AfterFunc(c.duration, func() { c.fire(gen) })
}

// SetDuration 只影响下一次 Reset
func (c *Countdown) SetDuration(d time.Duration) {
	c.mu.Lock()
	c.duration = d
	c.mu.Unlock()
}

func (c *Countdown) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
}

func (c *Countdown) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.running = false
	c.gen++
}

func (c *Countdown) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.expired = true
	c.timer = nil
	cb := c.onExpire
	c.mu.Unlock()

	if cb != nil {
		cb(gen)
	}
}

// Current 判断 gen 是否仍是最近一次 Reset 的代次
func (c *Countdown) Current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Remaining 剩余时长，已停止或已到期时为 0
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0
	}
	left := c.deadline.Sub(c.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}
