package rod

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// DefaultRecycleAfter is the number of rendered pages before the browser is
// replaced with a fresh instance.
const DefaultRecycleAfter = 100

// browserPool holds a single headless browser and replaces it after a fixed
// number of renders. Chrome's resident memory grows with every page and does
// not shrink after tabs close.
type browserPool struct {
	mu           sync.Mutex
	browser      *rod.Browser
	launcher     *launcher.Launcher
	rendered     atomic.Int64
	recycleAfter int64
	closed       atomic.Bool
}

func newBrowserPool(recycleAfter int64) (*browserPool, error) {
	if recycleAfter <= 0 {
		recycleAfter = DefaultRecycleAfter
	}
	p := &browserPool{recycleAfter: recycleAfter}
	if err := p.launch(); err != nil {
		return nil, err
	}
	return p, nil
}

// acquire returns the current browser, recycling it first when the render
// budget is spent.
func (p *browserPool) acquire() (*rod.Browser, error) {
	if p.closed.Load() {
		return nil, fmt.Errorf("browser closed")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rendered.Load() >= p.recycleAfter {
		p.recycle()
	}
	return p.browser, nil
}

// done records one finished render.
func (p *browserPool) done() {
	p.rendered.Add(1)
}

func (p *browserPool) close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown()
}

func (p *browserPool) pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.launcher == nil {
		return 0
	}
	return p.launcher.PID()
}

func (p *browserPool) launch() error {
	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Leakless(true).
		Headless(true)

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connecting to browser: %w", err)
	}

	p.browser = browser
	p.launcher = l
	return nil
}

// Must be called with mu held.
func (p *browserPool) shutdown() error {
	var err error
	if p.browser != nil {
		err = p.browser.Close()
		p.browser = nil
	}
	if p.launcher != nil {
		p.launcher.Kill()
		p.launcher = nil
	}
	return err
}

// recycle swaps in a new browser. The old one is kept if the launch fails.
// Must be called with mu held.
func (p *browserPool) recycle() {
	oldBrowser, oldLauncher := p.browser, p.launcher
	if err := p.launch(); err != nil {
		p.browser, p.launcher = oldBrowser, oldLauncher
		return
	}
	if oldBrowser != nil {
		_ = oldBrowser.Close()
	}
	if oldLauncher != nil {
		oldLauncher.Kill()
	}
	p.rendered.Store(0)
}
