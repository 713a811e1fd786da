package intake

import (
	"math"
	"time"

	"golang.org/x/time/rate"

	"arena/server/internal/config"
	"arena/server/internal/net/proto"
)

// Limiter holds one token bucket per limited message type for a single
// connection. Types without a bucket are never limited.
type Limiter struct {
	buckets map[proto.MessageType]*rate.Limiter
}

func NewLimiter(cfg config.RateLimits) *Limiter {
	l := &Limiter{buckets: make(map[proto.MessageType]*rate.Limiter, 3)}
	l.set(proto.TypeMove, cfg.Move)
	l.set(proto.TypeChat, cfg.Chat)
	l.set(proto.TypePing, cfg.Ping)
	return l
}

func (l *Limiter) set(t proto.MessageType, perSecond float64) {
	if perSecond <= 0 {
		return
	}
	burst := int(math.Ceil(perSecond))
	l.buckets[t] = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Allow consumes a token for t at now. It returns ErrRateLimited when the
// bucket is empty.
func (l *Limiter) Allow(t proto.MessageType, now time.Time) error {
	if l == nil {
		return nil
	}
	bucket, ok := l.buckets[t]
	if !ok || bucket.AllowN(now, 1) {
		return nil
	}
	return ErrRateLimited
}
