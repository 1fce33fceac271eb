package api

import (
	"maps"
	"mime/multipart"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/storage"
)

// decodeForm builds a payload from form values and files. Bracketed keys
// nest: "comments[0][body]" sets the body of the first comment, and
// "tags[]" appends to tags.
func decodeForm(values map[string][]string, files map[string][]*multipart.FileHeader) ormapi.Record {
	root := make(map[string]any)
	for _, k := range slices.Sorted(maps.Keys(values)) {
		for _, v := range values[k] {
			set(root, segments(k), v)
		}
	}
	for _, k := range slices.Sorted(maps.Keys(files)) {
		for _, fh := range files[k] {
			set(root, segments(k), storage.FromHeader(fh))
		}
	}
	for k, v := range root {
		root[k] = lists(v)
	}
	return root
}

// segments splits "a[b][0]" into a, b and 0.
func segments(key string) []string {
	name, rest, ok := strings.Cut(key, "[")
	if !ok {
		return []string{key}
	}
	segs := []string{name}
	for _, part := range strings.Split(strings.TrimSuffix(rest, "]"), "][") {
		segs = append(segs, part)
	}
	return segs
}

func set(m map[string]any, segs []string, v any) {
	seg := segs[0]
	if seg == "" {
		seg = strconv.Itoa(len(m))
	}
	if len(segs) == 1 {
		m[seg] = v
		return
	}
	child, ok := m[seg].(map[string]any)
	if !ok {
		child = make(map[string]any)
		m[seg] = child
	}
	set(child, segs[1:], v)
}

// lists converts the maps keyed by consecutive indexes into lists.
func lists(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, x := range m {
		m[k] = lists(x)
	}
	if len(m) == 0 {
		return m
	}
	items := make([]any, len(m))
	for k, x := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(m) {
			return m
		}
		items[i] = x
	}
	return items
}
