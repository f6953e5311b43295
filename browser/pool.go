// Package browser owns the shared headless-browser session used for
// rendered fetches. The session is created lazily on first use, kept warm
// across fetches, and torn down once on shutdown.
package browser

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/justscrape/config"
	"github.com/use-agent/justscrape/models"
)

// LaunchFunc starts a browser and returns the connected handle plus a
// cleanup function that releases the underlying process.
type LaunchFunc func() (*rod.Browser, func(), error)

// Pool is a lazy, thread-safe holder for a single browser session.
//
// Invariants:
//   - at most one live session exists at a time;
//   - initialization happens at most once unless Shutdown is called,
//     after which the pool can be reused;
//   - a failed launch leaves the pool uninitialized, so the next Acquire
//     retries instead of seeing a poisoned state.
type Pool struct {
	mu      sync.Mutex
	launch  LaunchFunc
	handle  atomic.Pointer[rod.Browser]
	cleanup func()

	lastUsed atomic.Int64 // unix nanos of the most recent acquisition
}

// NewPool creates a pool that launches a headless Chromium per cfg.
func NewPool(cfg config.BrowserConfig) *Pool {
	return &Pool{launch: chromiumLauncher(cfg)}
}

// NewPoolWithLaunch creates a pool with a custom launch function.
// Used by tests to count initializations without starting a browser.
func NewPoolWithLaunch(launch LaunchFunc) *Pool {
	return &Pool{launch: launch}
}

// Acquire returns the shared browser session, creating it on first call.
// Concurrent first-time callers are serialized so exactly one underlying
// session is created; later acquisitions are lock-free reads.
func (p *Pool) Acquire() (*rod.Browser, error) {
	if b := p.handle.Load(); b != nil {
		p.lastUsed.Store(time.Now().UnixNano())
		return b, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Another caller may have initialized while we waited for the lock.
	if b := p.handle.Load(); b != nil {
		p.lastUsed.Store(time.Now().UnixNano())
		return b, nil
	}

	b, cleanup, err := p.launch()
	if err != nil {
		return nil, models.NewRetrieveError(
			models.ErrCodeBrowserStart,
			"failed to launch rendering session",
			err,
		)
	}

	p.cleanup = cleanup
	p.handle.Store(b)
	p.lastUsed.Store(time.Now().UnixNano())
	slog.Info("rendering session initialized")
	return b, nil
}

// Page acquires the session and opens a fresh tab on it. Callers own the
// returned page and must close it; the session itself stays alive.
func (p *Pool) Page() (*rod.Page, error) {
	b, err := p.Acquire()
	if err != nil {
		return nil, err
	}
	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewRetrieveError(
			models.ErrCodeBrowserStart,
			"failed to open page on rendering session",
			err,
		)
	}
	return page, nil
}

// Shutdown releases the underlying browser process. It is idempotent and
// safe to call concurrently; a later Acquire re-initializes the pool.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle.Load() == nil {
		return
	}
	slog.Info("rendering session shutting down")
	if p.cleanup != nil {
		p.cleanup()
	}
	p.cleanup = nil
	p.handle.Store(nil)
}

// Stats returns a snapshot for observability. IdleSeconds is informational
// only: the pool never evicts the session based on idleness.
func (p *Pool) Stats() models.PoolStats {
	initialized := p.handle.Load() != nil
	var idle float64
	if last := p.lastUsed.Load(); initialized && last > 0 {
		idle = time.Since(time.Unix(0, last)).Seconds()
	}
	return models.PoolStats{
		Initialized: initialized,
		IdleSeconds: idle,
	}
}

// chromiumLauncher builds the default LaunchFunc from browser config,
// with the usual automation-hiding flags.
func chromiumLauncher(cfg config.BrowserConfig) LaunchFunc {
	return func() (*rod.Browser, func(), error) {
		l := launcher.New().
			Headless(cfg.Headless).
			NoSandbox(cfg.NoSandbox)

		if cfg.BrowserBin != "" {
			l = l.Bin(cfg.BrowserBin)
		}
		if cfg.Proxy != "" {
			l = l.Proxy(cfg.Proxy)
		}

		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
		l.Set(flags.Flag("disable-background-timer-throttling"))
		l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
		l.Set(flags.Flag("disable-component-update"))
		l.Set(flags.Flag("disable-default-apps"))
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("disable-extensions"))
		l.Set(flags.Flag("disable-popup-blocking"))
		l.Set(flags.Flag("no-first-run"))

		controlURL, err := l.Launch()
		if err != nil {
			return nil, nil, err
		}

		b := rod.New().ControlURL(controlURL)
		if err := b.Connect(); err != nil {
			l.Kill()
			return nil, nil, err
		}

		slog.Info("browser launched", "controlURL", controlURL)
		cleanup := func() {
			if err := b.Close(); err != nil {
				slog.Warn("browser close failed", "error", err)
			}
		}
		return b, cleanup, nil
	}
}
