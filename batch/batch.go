// Package batch runs work over a slice in bounded, ordered groups.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Process splits items into contiguous groups of size and hands each group to
// fn, one group at a time. Results are concatenated in input order. A size
// below one is treated as one.
func Process[T, R any](ctx context.Context, items []T, size int, fn func(context.Context, []T) []R) []R {
	if size < 1 {
		size = 1
	}

	results := make([]R, 0, len(items))
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		results = append(results, fn(ctx, items[start:end])...)
	}
	return results
}

// InParallel calls fn for every item concurrently and waits for all of them.
// result[i] corresponds to items[i]. fn must not panic; wrap it if it can.
func InParallel[T, R any](ctx context.Context, items []T, fn func(context.Context, T) R) []R {
	results := make([]R, len(items))

	var g errgroup.Group
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			results[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Grouped combines Process and InParallel: groups run sequentially, items
// within a group run concurrently.
func Grouped[T, R any](ctx context.Context, items []T, size int, fn func(context.Context, T) R) []R {
	return Process(ctx, items, size, func(ctx context.Context, group []T) []R {
		return InParallel(ctx, group, fn)
	})
}
