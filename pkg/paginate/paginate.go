package paginate

import (
	"context"
	"iter"
)

// Page is one page of a cursor-paginated collection.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// FetchFunc loads the page that starts at cursor. The first call receives "".
type FetchFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Items lazily walks every page returned by fetch, yielding one item at a
// time. A fetch error, or ctx being done, is yielded once as the final
// element. The sequence stops when a page comes back without a next cursor.
//
// Each range over the returned sequence starts a fresh cursor chain; nothing
// is checkpointed, so a consumer that stops early must start over.
func Items[T any](ctx context.Context, fetch FetchFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		cursor := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			page, err := fetch(ctx, cursor)
			if err != nil {
				yield(zero, err)
				return
			}

			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}

			if page.NextCursor == "" || page.NextCursor == cursor {
				return
			}
			cursor = page.NextCursor
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}
