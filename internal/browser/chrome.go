package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/reportgate/reportgate/pkg/logger"
)

// defaultWSURLReadTimeout is raised from chromedp's 20s for slow hosts
const defaultWSURLReadTimeout = 60 * time.Second

// defaultOpenTabTimeout bounds tab creation when the request sets no timeout
const defaultOpenTabTimeout = 30 * time.Second

// ChromeOptions configures the Chrome launcher
type ChromeOptions struct {
	// ExecPath overrides the Chrome binary; CHROME_PATH is used when empty
	ExecPath string
	// WSURLReadTimeout bounds how long to wait for the DevTools endpoint
	WSURLReadTimeout time.Duration
}

// ChromeLauncher launches headless Chrome via chromedp
type ChromeLauncher struct {
	opts ChromeOptions
}

// NewChromeLauncher creates a launcher
func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	if opts.ExecPath == "" {
		opts.ExecPath = os.Getenv("CHROME_PATH")
	}
	if opts.WSURLReadTimeout <= 0 {
		opts.WSURLReadTimeout = defaultWSURLReadTimeout
	}
	return &ChromeLauncher{opts: opts}
}

// Launch starts a browser process. The process outlives ctx; it ends on Close.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("allow-file-access-from-files", true),
		chromedp.Flag("headless", true),
		chromedp.WSURLReadTimeout(l.opts.WSURLReadTimeout),
	)
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug(fmt.Sprintf("chromedp: "+format, args...))
		}),
	)

	// An empty Run starts the process so launch failures surface here
	startedAt := time.Now()
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	logger.Debug("Chrome launched",
		zap.String("exec_path", l.opts.ExecPath),
		zap.Duration("startup", time.Since(startedAt)),
	)

	return &chromeBrowser{
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

// chromeBrowser is one Chrome process
type chromeBrowser struct {
	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// newTab opens a page on the browser. The returned context is bounded by
// timeout (when positive) and by the caller's ctx.
func (b *chromeBrowser) newTab(ctx context.Context, timeout time.Duration) (context.Context, func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, ErrClosed
	}
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	b.mu.Unlock()

	run := func() error { return chromedp.Run(tabCtx) }
	if err := openTarget(ctx, timeout, run, tabCancel); err != nil {
		return nil, nil, err
	}

	runCtx, runCancel := tabCtx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, runCancel = context.WithTimeout(tabCtx, timeout)
	}
	stop := context.AfterFunc(ctx, runCancel)

	release := func() {
		stop()
		runCancel()
		tabCancel()
	}
	return runCtx, release, nil
}

// openTarget allocates the tab's target. The first Run on a tab context owns
// the target, so the deadline is enforced by cancelling the tab instead of
// deriving a shorter context for that Run.
func openTarget(ctx context.Context, timeout time.Duration, run func() error, tabCancel context.CancelFunc) error {
	if timeout <= 0 {
		timeout = defaultOpenTabTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	done := make(chan error, 1)
	go func() { done <- run() }()

	select {
	case err := <-done:
		if err != nil {
			tabCancel()
			return fmt.Errorf("failed to open page: %w", err)
		}
		return nil
	case <-timer.C:
		tabCancel()
		return fmt.Errorf("failed to open page: %w", context.DeadlineExceeded)
	case <-ctx.Done():
		tabCancel()
		return fmt.Errorf("failed to open page: %w", ctx.Err())
	}
}

// CaptureElement implements Browser
func (b *chromeBrowser) CaptureElement(ctx context.Context, req CaptureRequest) ([]byte, error) {
	fileURL, removeDoc, err := writeDocument(req.Document)
	if err != nil {
		return nil, err
	}
	defer removeDoc()

	runCtx, release, err := b.newTab(ctx, req.Timeout)
	if err != nil {
		return nil, err
	}
	defer release()

	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(req.Width), int64(req.Height)),
		chromedp.Navigate(fileURL),
		chromedp.WaitVisible(req.Selector, chromedp.ByQuery),
	}
	if req.ReadyExpression != "" {
		var ready bool
		actions = append(actions, chromedp.Poll(req.ReadyExpression, &ready, chromedp.WithPollingInterval(50*time.Millisecond)))
	}

	var buf []byte
	actions = append(actions, chromedp.Screenshot(req.Selector, &buf, chromedp.NodeVisible, chromedp.ByQuery))

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if runCtx.Err() != nil {
			return nil, fmt.Errorf("capture %s: %w", req.Selector, runCtx.Err())
		}
		return nil, fmt.Errorf("capture %s: %w", req.Selector, err)
	}
	return buf, nil
}

// PrintToPDF implements Browser
func (b *chromeBrowser) PrintToPDF(ctx context.Context, req PrintRequest) ([]byte, error) {
	fileURL, removeDoc, err := writeDocument(req.Document)
	if err != nil {
		return nil, err
	}
	defer removeDoc()

	runCtx, release, err := b.newTab(ctx, req.Timeout)
	if err != nil {
		return nil, err
	}
	defer release()

	var pdfData []byte
	err = chromedp.Run(runCtx,
		chromedp.Navigate(fileURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(req.SettleDelay),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = page.PrintToPDF().
				WithPaperWidth(req.PaperWidth).
				WithPaperHeight(req.PaperHeight).
				WithMarginTop(req.MarginTop).
				WithMarginBottom(req.MarginBottom).
				WithMarginLeft(req.MarginLeft).
				WithMarginRight(req.MarginRight).
				WithDisplayHeaderFooter(req.DisplayHeaderFooter).
				WithHeaderTemplate(req.HeaderTemplate).
				WithFooterTemplate(req.FooterTemplate).
				WithPrintBackground(req.PrintBackground).
				WithPreferCSSPageSize(false).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		if runCtx.Err() != nil {
			return nil, fmt.Errorf("print to pdf: %w", runCtx.Err())
		}
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	return pdfData, nil
}

// Close implements Browser
func (b *chromeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	err := chromedp.Cancel(b.ctx)
	b.browserCancel()
	b.allocCancel()
	return err
}

// writeDocument stores markup in a temp file so relative file:// images resolve
func writeDocument(doc string) (string, func(), error) {
	f, err := os.CreateTemp("", "reportgate-*.html")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp document: %w", err)
	}
	path := f.Name()
	if _, err := f.WriteString(doc); err != nil {
		f.Close()
		os.Remove(path)
		return "", nil, fmt.Errorf("failed to write temp document: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", nil, fmt.Errorf("failed to close temp document: %w", err)
	}
	return "file://" + path, func() { os.Remove(path) }, nil
}
