// Package auth はログイン試行回数の制限を提供します。
// 資格情報の検証そのものはバックエンドが行います。
package auth

import (
	"context"
	"sync"
	"time"
)

const (
	defaultWindow      = 15 * time.Minute
	defaultLockFor     = 10 * time.Minute
	defaultMaxAttempts = 5
)

// Throttle はクライアント単位のログイン失敗回数を管理します。
// Limiter（プロセス内）と RedisLimiter（レプリカ間で共有）が満たします。
type Throttle interface {
	// RetryAfter はロック中なら残り時間を、そうでなければ 0 を返します。
	RetryAfter(ctx context.Context, key string) (time.Duration, error)
	// RecordFailure は失敗を 1 回記録し、ロックまでの残り回数を返します。
	RecordFailure(ctx context.Context, key string) (int, error)
	// Reset は成功時に記録を消去します。
	Reset(ctx context.Context, key string) error
}

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

func (s *attemptState) expired(now time.Time, window time.Duration) bool {
	return now.Sub(s.firstAttempt) > window && !now.Before(s.lockedUntil)
}

// Limiter はプロセス内のマップで失敗回数を数え、上限に達したら一定時間ロックします。
// 再起動で記録は消え、レプリカ間では共有されません。
type Limiter struct {
	Window      time.Duration
	LockFor     time.Duration
	MaxAttempts int

	now       func() time.Time
	lock      sync.Mutex
	attempts  map[string]*attemptState
	lastSweep time.Time
}

// NewLimiter は既定値（15分間に5回失敗で10分ロック）のリミッターを作成します。
func NewLimiter() *Limiter {
	return &Limiter{
		Window:      defaultWindow,
		LockFor:     defaultLockFor,
		MaxAttempts: defaultMaxAttempts,
		now:         time.Now,
		attempts:    make(map[string]*attemptState),
	}
}

// RetryAfter は Throttle を満たします。nil レシーバーは常に 0 です。
func (l *Limiter) RetryAfter(_ context.Context, key string) (time.Duration, error) {
	if l == nil {
		return 0, nil
	}
	l.lock.Lock()
	defer l.lock.Unlock()

	state, ok := l.attempts[key]
	if !ok {
		return 0, nil
	}
	now := l.now()
	if state.expired(now, l.Window) {
		delete(l.attempts, key)
		return 0, nil
	}
	if !now.Before(state.lockedUntil) {
		return 0, nil
	}
	return state.lockedUntil.Sub(now), nil
}

// RecordFailure は Throttle を満たします。
func (l *Limiter) RecordFailure(_ context.Context, key string) (int, error) {
	if l == nil {
		return 0, nil
	}
	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.now()
	l.sweep(now)

	state, ok := l.attempts[key]
	if !ok || now.Sub(state.firstAttempt) > l.Window {
		state = &attemptState{firstAttempt: now}
		l.attempts[key] = state
	}

	state.count++
	if state.count >= l.MaxAttempts {
		state.lockedUntil = now.Add(l.LockFor)
		state.count = l.MaxAttempts
	}

	return max(l.MaxAttempts-state.count, 0), nil
}

// Reset は Throttle を満たします。
func (l *Limiter) Reset(_ context.Context, key string) error {
	if l == nil {
		return nil
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.attempts, key)
	return nil
}

// sweep は窓もロックも切れた記録を捨てます。走査は Window ごとに高々 1 回です。呼び出し側でロック済みであること。
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.Window {
		return
	}
	l.lastSweep = now
	for key, state := range l.attempts {
		if state.expired(now, l.Window) {
			delete(l.attempts, key)
		}
	}
}
