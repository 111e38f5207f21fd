package view

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type Refresher interface {
	Refresh(ctx context.Context) error
}

// WarmUp runs one refresh of every view concurrently and returns the first
// error. Views stay usable after a failed warm-up; their loops retry.
func WarmUp(ctx context.Context, views ...Refresher) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, v := range views {
		g.Go(func() error {
			return v.Refresh(ctx)
		})
	}
	return g.Wait()
}
