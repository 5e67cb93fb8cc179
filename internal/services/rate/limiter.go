package rate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	checkoutMinuteWindow = time.Minute
	checkout10SecWindow  = 10 * time.Second
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter throttles checkout initiation per buyer identity. Guests are
// keyed by email, accounts by user id, so a guest hammering the endpoint
// cannot consume an account's budget.
type Limiter struct {
	store     WindowStore
	perMinute int
	per10Sec  int
}

func NewLimiter(store WindowStore, perMinute, per10Sec int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	if per10Sec < 0 {
		per10Sec = 0
	}

	return &Limiter{
		store:     store,
		perMinute: perMinute,
		per10Sec:  per10Sec,
	}
}

func (l *Limiter) AllowCheckout(ctx context.Context, identityKey string) (bool, error) {
	if strings.TrimSpace(identityKey) == "" {
		return false, fmt.Errorf("invalid identity key")
	}
	if l.store == nil {
		return false, fmt.Errorf("rate limiter store is nil")
	}

	blocked := false

	if l.perMinute > 0 {
		count, _, err := l.store.IncrementWindow(ctx, minuteKey(identityKey), checkoutMinuteWindow)
		if err != nil {
			return false, err
		}
		if count > int64(l.perMinute) {
			blocked = true
		}
	}

	if l.per10Sec > 0 {
		count, _, err := l.store.IncrementWindow(ctx, tenSecKey(identityKey), checkout10SecWindow)
		if err != nil {
			return false, err
		}
		if count > int64(l.per10Sec) {
			blocked = true
		}
	}

	return !blocked, nil
}

func minuteKey(identityKey string) string {
	return "rate:checkout:min:" + identityKey
}

func tenSecKey(identityKey string) string {
	return "rate:checkout:10s:" + identityKey
}
