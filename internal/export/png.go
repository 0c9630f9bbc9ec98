package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultPNGTimeout bounds one capture including browser start-up.
const DefaultPNGTimeout = 30 * time.Second

// ErrPNGDisabled is returned when PNG export is switched off.
var ErrPNGDisabled = errors.New("png export is disabled")

// pageTemplate hosts the SVG in a blank page. Clipping is relaxed on every
// element so labels that overflow their block are still captured.
const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
html, body { margin: 0; padding: 0; background: #FFFFFF; overflow: visible; }
svg, svg * { overflow: visible !important; clip-path: none !important; }
</style>
</head>
<body data-ready="true">
%s
</body>
</html>`

// Page wraps an SVG document in the HTML page that is captured. An XML
// declaration is dropped since it is not valid inside HTML.
func Page(svg []byte) string {
	svg = bytes.TrimSpace(svg)
	if bytes.HasPrefix(svg, []byte("<?xml")) {
		if end := bytes.Index(svg, []byte("?>")); end >= 0 {
			svg = bytes.TrimSpace(svg[end+2:])
		}
	}
	return fmt.Sprintf(pageTemplate, svg)
}

// PNGRenderer rasterises SVG timetables with headless Chromium.
type PNGRenderer struct {
	timeout   time.Duration
	allocOpts []chromedp.ExecAllocatorOption
}

// NewPNGRenderer constructs a renderer. Extra allocator options are appended
// to chromedp's defaults, for example chromedp.ExecPath.
func NewPNGRenderer(timeout time.Duration, opts ...chromedp.ExecAllocatorOption) *PNGRenderer {
	if timeout <= 0 {
		timeout = DefaultPNGTimeout
	}
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.NoSandbox, chromedp.DisableGPU)
	allocOpts = append(allocOpts, opts...)
	return &PNGRenderer{timeout: timeout, allocOpts: allocOpts}
}

// Render captures svg at width x height CSS pixels and returns PNG bytes.
func (r *PNGRenderer) Render(ctx context.Context, svg []byte, width, height float64) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("capture: invalid size %.0fx%.0f", width, height)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, r.allocOpts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	url := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(Page(svg)))

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(math.Ceil(width)), int64(math.Ceil(height))),
		chromedp.Navigate(url),
		chromedp.WaitVisible(`body[data-ready="true"] svg`, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	return png, nil
}
