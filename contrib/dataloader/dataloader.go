// Package dataloader loads the related values of a batch of owners with one
// query per chunk of keys, and hands them back grouped or ordered by key.
//
// Define a batch function reading the values of a set of keys:
//
//	posts := dataloader.New(func(ctx context.Context, ids []string) ([]ormapi.Record, error) {
//	    return store.QueryRecords(ctx, sel.Where(sql.In("user_id", values(ids)...)))
//	}, func(r ormapi.Record) string { return sqlgraph.Key(r["user_id"]) })
//
//	groups, err := posts.LoadGroups(ctx, userIDs)
//	// groups[id] holds the posts of user id
package dataloader

import (
	"context"
	"errors"
)

// ErrNotFound is returned for keys without a value in a batch result.
var ErrNotFound = errors.New("dataloader: value not found")

// DefaultChunkSize bounds the number of keys passed to a batch function.
const DefaultChunkSize = 500

// KeyFunc extracts the key of a value.
type KeyFunc[K comparable, V any] func(V) K

// BatchFunc loads the values of a set of distinct keys. Values may be
// returned in any order, and any number of values may share a key.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, error)

// Loader loads values by key in chunks.
type Loader[K comparable, V any] struct {
	batch BatchFunc[K, V]
	key   KeyFunc[K, V]
	chunk int
}

// Option configures a Loader.
type Option func(*options)

type options struct{ chunk int }

// WithChunkSize sets the maximum number of keys of a batch.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunk = n }
}

// New returns a loader reading values with batch and keying them with key.
func New[K comparable, V any](batch BatchFunc[K, V], key KeyFunc[K, V], opts ...Option) *Loader[K, V] {
	o := options{chunk: DefaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.chunk <= 0 {
		o.chunk = DefaultChunkSize
	}
	return &Loader[K, V]{batch: batch, key: key, chunk: o.chunk}
}

// LoadGroups loads the values of keys, grouped by key. Duplicate keys are
// loaded once and no batch runs for an empty key set.
func (l *Loader[K, V]) LoadGroups(ctx context.Context, keys []K) (map[K][]V, error) {
	keys = Unique(keys)
	groups := make(map[K][]V, len(keys))
	for start := 0; start < len(keys); start += l.chunk {
		end := min(start+l.chunk, len(keys))
		values, err := l.batch(ctx, keys[start:end])
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			k := l.key(v)
			groups[k] = append(groups[k], v)
		}
	}
	return groups, nil
}

// Load loads one value per key, in the order of keys. Keys without a value
// get the zero value and ErrNotFound.
func (l *Loader[K, V]) Load(ctx context.Context, keys []K) ([]V, []error, error) {
	groups, err := l.LoadGroups(ctx, keys)
	if err != nil {
		return nil, nil, err
	}
	values := make([]V, 0, len(groups))
	for _, g := range groups {
		values = append(values, g[0])
	}
	result, errs := OrderByKeys(keys, values, l.key)
	return result, errs, nil
}

// Unique returns keys without duplicates, keeping the first occurrence.
func Unique[K comparable](keys []K) []K {
	seen := make(map[K]struct{}, len(keys))
	out := make([]K, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// OrderByKeys reorders values to match the order of keys. Missing values
// are represented as zero values with ErrNotFound.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}

// GroupByKey groups values by key, keeping their order within a group.
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys returns the group of every key, in the order of keys.
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		result[i] = groups[key]
	}
	return result
}
