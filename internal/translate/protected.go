package translate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/geocoder89/linguadesk/internal/observability"
)

var ErrCircuitOpen = errors.New("translate: circuit breaker open")

const (
	stateClosed   = "closed"
	stateOpen     = "open"
	stateHalfOpen = "half_open"
)

type ProtectedConfig struct {
	Timeout          time.Duration // hard timeout per call
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
}

// Protected bounds each call with a timeout and stops calling a failing
// upstream for a cooldown period. It never retries.
type Protected struct {
	inner Translator
	cfg   ProtectedConfig
	prom  *observability.Prom
	now   func() time.Time

	mu                  sync.Mutex
	state               string
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtected(inner Translator, cfg ProtectedConfig, prom *observability.Prom) *Protected {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &Protected{
		inner: inner,
		cfg:   cfg,
		prom:  prom,
		now:   time.Now,
		state: stateClosed,
	}
}

func (p *Protected) Translate(ctx context.Context, req Request) (string, error) {
	if !p.allowRequest() {
		p.prom.ObserveTranslate("circuit_open", 0)
		return "", ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	out, err := p.inner.Translate(callCtx, req)

	result := "ok"
	if err != nil {
		result = "error"
	}
	p.prom.ObserveTranslate(result, time.Since(start))

	p.afterRequest(err)

	return out, err
}

// State reports closed, open or half_open.
func (p *Protected) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Protected) allowRequest() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateOpen:
		if p.now().Sub(p.openedAt) >= p.cfg.Cooldown {
			p.state = stateHalfOpen
			p.halfOpenInFlight = 1
			return true
		}
		return false
	case stateHalfOpen:
		if p.halfOpenInFlight >= p.cfg.HalfOpenMaxCalls {
			return false
		}
		p.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (p *Protected) afterRequest(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateHalfOpen && p.halfOpenInFlight > 0 {
		p.halfOpenInFlight--
	}

	// caller-side errors say nothing about upstream health
	if errors.Is(err, ErrEmptyText) || errors.Is(err, context.Canceled) {
		return
	}

	if err == nil {
		p.consecutiveFailures = 0
		p.state = stateClosed
		return
	}

	p.consecutiveFailures++

	if p.state == stateHalfOpen || p.consecutiveFailures >= p.cfg.FailureThreshold {
		p.state = stateOpen
		p.openedAt = p.now()
	}
}
