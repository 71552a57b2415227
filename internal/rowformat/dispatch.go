// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package rowformat

import (
	"context"

	"seedfast/pagedquery/internal/engine"
)

// DefaultThreshold is the page size above which pages are formatted on the pool.
// Smaller pages do not amortize the dispatch overhead.
const DefaultThreshold = 200_000

// Mapper runs fn over contiguous sub-ranges of [0, n) in parallel.
// *workerpool.Pool implements it.
type Mapper interface {
	Map(ctx context.Context, n int, fn func(ctx context.Context, lo, hi int) error) error
}

// Strategy formats one page.
type Strategy interface {
	Format(ctx context.Context, page *engine.Page, schema engine.Schema) ([][]any, error)
}

// Sequential formats in the calling goroutine.
type Sequential struct{}

func (Sequential) Format(ctx context.Context, page *engine.Page, schema engine.Schema) ([][]any, error) {
	return Rows(page.Rows, schema)
}

// Parallel formats on a Mapper and reassembles rows in their original order.
// A failure in any chunk fails the whole page.
type Parallel struct {
	Pool Mapper
}

func (p Parallel) Format(ctx context.Context, page *engine.Page, schema engine.Schema) ([][]any, error) {
	out := make([][]any, len(page.Rows))
	err := p.Pool.Map(ctx, len(page.Rows), func(ctx context.Context, lo, hi int) error {
		return rowsInto(out, page.Rows, schema, lo, hi)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Dispatcher picks a Strategy per page by item count.
type Dispatcher struct {
	// Threshold is the item count above which Pool is used. Zero means DefaultThreshold.
	Threshold int
	// Pool is used for large pages. A nil Pool always formats sequentially.
	Pool Mapper
}

// Select returns the strategy for page.
func (d Dispatcher) Select(page *engine.Page) Strategy {
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if d.Pool != nil && page.ItemCount > threshold {
		return Parallel{Pool: d.Pool}
	}
	return Sequential{}
}

// Format formats page with the selected strategy.
func (d Dispatcher) Format(ctx context.Context, page *engine.Page, schema engine.Schema) ([][]any, error) {
	return d.Select(page).Format(ctx, page, schema)
}
