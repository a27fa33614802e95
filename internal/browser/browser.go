// Package browser wraps headless Chrome behind a small handle abstraction.
//
// A Browser is an explicitly scoped resource: whoever obtains it from a
// Launcher owns it and is the only party that may Close it. Callers that
// borrow a Browser open pages on it but never close it.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned when a page is requested from a closed browser
var ErrClosed = errors.New("browser is closed")

// Launcher starts browser processes
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is a running browser process. Each call opens a fresh page
// (tab) that is closed before the call returns.
type Browser interface {
	// CaptureElement loads a document and returns a PNG of one element
	CaptureElement(ctx context.Context, req CaptureRequest) ([]byte, error)
	// PrintToPDF loads a document and prints it
	PrintToPDF(ctx context.Context, req PrintRequest) ([]byte, error)
	// Close terminates the browser. Safe to call more than once.
	Close() error
}

// CaptureRequest describes an element screenshot
type CaptureRequest struct {
	// Document is a complete HTML document
	Document string
	// Width and Height size the viewport in CSS pixels
	Width  int
	Height int
	// Selector is a CSS selector of the element to capture
	Selector string
	// ReadyExpression is a JS expression polled until true before capture (optional)
	ReadyExpression string
	// Timeout bounds navigation, readiness and capture
	Timeout time.Duration
}

// PrintRequest describes a print-to-PDF call. Sizes are in inches.
type PrintRequest struct {
	Document string

	// SettleDelay is waited after load so images and canvases finish painting
	SettleDelay time.Duration
	// Timeout bounds the whole print (zero means no extra bound)
	Timeout time.Duration

	PaperWidth   float64
	PaperHeight  float64
	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64

	DisplayHeaderFooter bool
	HeaderTemplate      string
	FooterTemplate      string
	PrintBackground     bool
}

// A4 paper size in inches
const (
	A4Width  = 8.27
	A4Height = 11.69
)
