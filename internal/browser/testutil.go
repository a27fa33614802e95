package browser

import (
	"context"
	"sync"
	"sync/atomic"
)

// FakeLauncher is a Launcher for tests that counts launches and hands out FakeBrowsers
type FakeLauncher struct {
	// LaunchErr makes every Launch fail
	LaunchErr error
	// CaptureFunc and PrintFunc are copied into launched browsers
	CaptureFunc func(ctx context.Context, req CaptureRequest) ([]byte, error)
	PrintFunc   func(ctx context.Context, req PrintRequest) ([]byte, error)

	launches atomic.Int32
	mu       sync.Mutex
	browsers []*FakeBrowser
}

// Launch implements Launcher
func (l *FakeLauncher) Launch(ctx context.Context) (Browser, error) {
	l.launches.Add(1)
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	b := &FakeBrowser{CaptureFunc: l.CaptureFunc, PrintFunc: l.PrintFunc}
	l.mu.Lock()
	l.browsers = append(l.browsers, b)
	l.mu.Unlock()
	return b, nil
}

// Launches returns the number of Launch calls
func (l *FakeLauncher) Launches() int {
	return int(l.launches.Load())
}

// Browsers returns the browsers launched so far
func (l *FakeLauncher) Browsers() []*FakeBrowser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*FakeBrowser(nil), l.browsers...)
}

// FakeBrowser records calls made against it
type FakeBrowser struct {
	CaptureFunc func(ctx context.Context, req CaptureRequest) ([]byte, error)
	PrintFunc   func(ctx context.Context, req PrintRequest) ([]byte, error)

	closes   atomic.Int32
	captures atomic.Int32
	prints   atomic.Int32
	// pagesAfterClose counts pages requested once the browser was closed
	pagesAfterClose atomic.Int32

	mu       sync.Mutex
	lastPrint *PrintRequest
}

// CaptureElement implements Browser
func (b *FakeBrowser) CaptureElement(ctx context.Context, req CaptureRequest) ([]byte, error) {
	b.captures.Add(1)
	if b.closes.Load() > 0 {
		b.pagesAfterClose.Add(1)
		return nil, ErrClosed
	}
	if b.CaptureFunc != nil {
		return b.CaptureFunc(ctx, req)
	}
	return []byte("\x89PNG fake"), nil
}

// PrintToPDF implements Browser
func (b *FakeBrowser) PrintToPDF(ctx context.Context, req PrintRequest) ([]byte, error) {
	b.prints.Add(1)
	b.mu.Lock()
	r := req
	b.lastPrint = &r
	b.mu.Unlock()
	if b.closes.Load() > 0 {
		b.pagesAfterClose.Add(1)
		return nil, ErrClosed
	}
	if b.PrintFunc != nil {
		return b.PrintFunc(ctx, req)
	}
	return []byte("%PDF-1.4 fake"), nil
}

// Close implements Browser
func (b *FakeBrowser) Close() error {
	b.closes.Add(1)
	return nil
}

// Closes returns the number of Close calls
func (b *FakeBrowser) Closes() int { return int(b.closes.Load()) }

// Captures returns the number of CaptureElement calls
func (b *FakeBrowser) Captures() int { return int(b.captures.Load()) }

// Prints returns the number of PrintToPDF calls
func (b *FakeBrowser) Prints() int { return int(b.prints.Load()) }

// PagesAfterClose returns how many pages were requested after Close
func (b *FakeBrowser) PagesAfterClose() int { return int(b.pagesAfterClose.Load()) }

// LastPrint returns the most recent print request, if any
func (b *FakeBrowser) LastPrint() *PrintRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPrint
}
