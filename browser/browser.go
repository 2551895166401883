// Package browser shows a highlighted document in a visible Chrome window.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"nuggets/fetcher"
	"nuggets/logger"
)

// Session is a live Chrome tab. It implements highlight.Viewport.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// Open launches Chrome. The window is visible unless headless is set.
func Open(ctx context.Context, headless bool) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, fetcher.AllocatorOptions(headless)...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	// starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	return &Session{ctx: tabCtx, cancel: cancel, allocCancel: allocCancel}, nil
}

// Show replaces the tab's document with markup.
func (s *Session) Show(markup string) error {
	err := chromedp.Run(s.ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, markup).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("showing document: %w", err)
	}
	return nil
}

// ScrollIntoView scrolls the first element matching selector into view.
func (s *Session) ScrollIntoView(ctx context.Context, selector string) error {
	ctx, cancel := merge(ctx, s.ctx)
	defer cancel()
	logger.Debug("scrolling to %s", selector)
	return chromedp.Run(ctx, chromedp.ScrollIntoView(selector, chromedp.ByQuery))
}

// Wait blocks until the window is closed or ctx is done.
func (s *Session) Wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.ctx.Done():
	}
}

// Close shuts the browser down.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}

// merge derives from tab, the context chromedp actions must run in, and
// cancels it when ctx is done.
func merge(ctx, tab context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(tab)
	stop := context.AfterFunc(ctx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
