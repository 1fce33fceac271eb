package field

import (
	"fmt"
	"maps"
	"math"
	"net/mail"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Rules maps payload paths to pipe separated constraint lists.
type Rules map[string]string

// Constraint is a single parsed rule, such as "max:255".
type Constraint struct {
	Name   string
	Params []string
}

// Parse splits a rule string into its constraints.
func Parse(rule string) []Constraint {
	var cs []Constraint
	for _, part := range strings.Split(rule, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, params, _ := strings.Cut(part, ":")
		c := Constraint{Name: strings.ToLower(name)}
		if params != "" {
			c.Params = strings.Split(params, ",")
		}
		cs = append(cs, c)
	}
	return cs
}

// Keys returns the rule keys in lexical order.
func (r Rules) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}

// Merge returns a new rule set with the rules of o added to r. Keys present
// in both keep the value of o.
func (r Rules) Merge(o Rules) Rules {
	m := make(Rules, len(r)+len(o))
	maps.Copy(m, r)
	maps.Copy(m, o)
	return m
}

// Nest returns the rules namespaced under relation, as "relation.*.key".
// Keys listed in except are dropped.
func (r Rules) Nest(relation string, except ...string) Rules {
	m := make(Rules, len(r))
	for k, v := range r {
		if slices.Contains(except, k) {
			continue
		}
		m[relation+".*."+k] = v
	}
	return m
}

// Without returns the rules without the given keys.
func (r Rules) Without(keys ...string) Rules {
	m := make(Rules, len(r))
	for k, v := range r {
		if !slices.Contains(keys, k) {
			m[k] = v
		}
	}
	return m
}

// Sometimes returns the rules checking only the keys present in a payload,
// as used for partial updates of existing records.
func (r Rules) Sometimes() Rules {
	m := make(Rules, len(r))
	for k, v := range r {
		if !has(Parse(v), "sometimes") {
			v = "sometimes|" + v
		}
		m[k] = v
	}
	return m
}

// Errors maps payload paths to their validation messages.
type Errors map[string][]string

// Add appends a message for path.
func (e Errors) Add(path, msg string) {
	e[path] = append(e[path], msg)
}

// Validate checks payload against rules and returns the failed paths, or nil
// when the payload is valid.
func Validate(payload map[string]any, rules Rules) Errors {
	errs := make(Errors)
	for _, key := range rules.Keys() {
		cs := Parse(rules[key])
		resolve(payload, strings.Split(key, "."), nil, func(path string, v any, present bool) {
			check(errs, path, v, present, cs)
		})
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// resolve walks segs inside v and calls visit for every addressed value.
// Missing values are only reported when their parent exists.
func resolve(v any, segs, path []string, visit func(string, any, bool)) {
	if len(segs) == 0 {
		visit(strings.Join(path, "."), v, true)
		return
	}
	seg := segs[0]
	if seg == "*" {
		switch v := v.(type) {
		case []any:
			for i, item := range v {
				resolve(item, segs[1:], append(slices.Clip(path), strconv.Itoa(i)), visit)
			}
		case []map[string]any:
			for i, item := range v {
				resolve(item, segs[1:], append(slices.Clip(path), strconv.Itoa(i)), visit)
			}
		case map[string]any:
			resolve(v, segs[1:], path, visit)
		}
		return
	}
	m, ok := v.(map[string]any)
	if !ok {
		return
	}
	child, present := m[seg]
	path = append(slices.Clip(path), seg)
	if !present {
		if len(segs) == 1 {
			visit(strings.Join(path, "."), nil, false)
		}
		return
	}
	resolve(child, segs[1:], path, visit)
}

func has(cs []Constraint, name string) bool {
	return slices.ContainsFunc(cs, func(c Constraint) bool { return c.Name == name })
}

func attribute(path string) string {
	return strings.ReplaceAll(path, "_", " ")
}

func check(errs Errors, path string, v any, present bool, cs []Constraint) {
	attr := attribute(path)
	required := has(cs, "required")
	switch {
	case !present:
		if required && !has(cs, "sometimes") {
			errs.Add(path, fmt.Sprintf("The %s field is required.", attr))
		}
		return
	case v == nil:
		if required && !has(cs, "nullable") {
			errs.Add(path, fmt.Sprintf("The %s field is required.", attr))
		}
		return
	case required && empty(v):
		errs.Add(path, fmt.Sprintf("The %s field is required.", attr))
		return
	}
	for _, c := range cs {
		if msg := apply(c, attr, v); msg != "" {
			errs.Add(path, msg)
		}
	}
}

func empty(v any) bool {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}

func apply(c Constraint, attr string, v any) string {
	switch c.Name {
	case "string":
		if _, ok := v.(string); !ok {
			return fmt.Sprintf("The %s field must be a string.", attr)
		}
	case "integer":
		if _, ok := toInt(v); !ok {
			return fmt.Sprintf("The %s field must be an integer.", attr)
		}
	case "numeric":
		if _, ok := toFloat(v); !ok {
			return fmt.Sprintf("The %s field must be a number.", attr)
		}
	case "boolean":
		if !isBool(v) {
			return fmt.Sprintf("The %s field must be true or false.", attr)
		}
	case "array":
		if _, ok := v.([]any); !ok {
			return fmt.Sprintf("The %s field must be an array.", attr)
		}
	case "date":
		if _, ok := ParseTime(v); !ok {
			return fmt.Sprintf("The %s field must be a valid date.", attr)
		}
	case "email":
		s, ok := v.(string)
		if _, err := mail.ParseAddress(s); !ok || err != nil {
			return fmt.Sprintf("The %s field must be a valid email address.", attr)
		}
	case "uuid":
		s, ok := v.(string)
		if _, err := uuid.Parse(s); !ok || err != nil {
			return fmt.Sprintf("The %s field must be a valid UUID.", attr)
		}
	case "in":
		if !slices.Contains(c.Params, fmt.Sprint(v)) {
			return fmt.Sprintf("The selected %s is invalid.", attr)
		}
	case "min", "max":
		if len(c.Params) != 1 {
			return ""
		}
		limit, err := strconv.ParseFloat(c.Params[0], 64)
		if err != nil {
			return ""
		}
		size, unit := sizeOf(v)
		if c.Name == "min" && size < limit {
			return fmt.Sprintf("The %s field must be at least %s%s.", attr, c.Params[0], unit)
		}
		if c.Name == "max" && size > limit {
			return fmt.Sprintf("The %s field must not be greater than %s%s.", attr, c.Params[0], unit)
		}
	}
	return ""
}

func sizeOf(v any) (float64, string) {
	switch v := v.(type) {
	case string:
		return float64(utf8.RuneCountInString(v)), " characters"
	case []any:
		return float64(len(v)), " items"
	}
	if f, ok := toFloat(v); ok {
		return f, ""
	}
	return 0, ""
}

func toInt(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), v == math.Trunc(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func isBool(v any) bool {
	switch v := v.(type) {
	case bool:
		return true
	case float64:
		return v == 0 || v == 1
	case int, int64:
		n, _ := toInt(v)
		return n == 0 || n == 1
	case string:
		switch v {
		case "0", "1", "true", "false":
			return true
		}
	}
	return false
}

// timeLayouts are the accepted date formats, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// ParseTime parses v as a date or timestamp.
func ParseTime(v any) (time.Time, bool) {
	switch v := v.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
