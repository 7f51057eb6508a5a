// Package pager implements keyset pagination over any source ordered by a
// monotonically assigned string key, newest first.
//
// A page is fetched as "matching filter AND key < cursor, key descending,
// limit pageSize+1". The extra row only signals that more data exists; the
// cursor handed back is the key of the last row kept. Because the cursor is a
// key and not an offset, inserts and deletes between fetches neither skip nor
// repeat rows, and a cursor whose row has since vanished still resumes at the
// right place.
package pager

import (
	"context"
	"errors"
	"sort"
)

var ErrPageSize = errors.New("pager: page size must be positive")

// Keyed is a record with a pagination key. Keys compare as byte strings.
type Keyed interface {
	Key() string
}

// Query is what a Source receives. Before is empty on the first page.
type Query[F any] struct {
	Filter F
	Before string
	Limit  int
}

type Source[T Keyed, F any] interface {
	Scan(ctx context.Context, q Query[F]) ([]T, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T Keyed, F any] func(ctx context.Context, q Query[F]) ([]T, error)

func (f SourceFunc[T, F]) Scan(ctx context.Context, q Query[F]) ([]T, error) { return f(ctx, q) }

type Page[T any] struct {
	Items []T
	// NextCursor is empty when the stream is exhausted.
	NextCursor string
}

func Fetch[T Keyed, F any](ctx context.Context, src Source[T, F], filter F, pageSize int, cursor string) (Page[T], error) {
	if pageSize <= 0 {
		return Page[T]{}, ErrPageSize
	}
	rows, err := src.Scan(ctx, Query[F]{Filter: filter, Before: cursor, Limit: pageSize + 1})
	if err != nil {
		return Page[T]{}, err
	}
	if len(rows) <= pageSize {
		return Page[T]{Items: rows}, nil
	}
	items := rows[:pageSize]
	return Page[T]{Items: items, NextCursor: items[pageSize-1].Key()}, nil
}

// Window applies a Query's cursor and limit to an in-memory slice of matching
// rows. rows may be in any order; the result is key-descending.
func Window[T Keyed](rows []T, before string, limit int) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if before == "" || r.Key() < before {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() > out[j].Key() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
