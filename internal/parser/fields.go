package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mickamy/pgdot/internal/errs"
	"github.com/mickamy/pgdot/internal/model"
)

// fields reads typed values out of one decoded JSON object. The first failure sticks
// in err; later reads still return zero values so callers can check once at the end.
type fields struct {
	data  map[string]any
	where string
	seen  map[string]struct{}
	err   error
}

func newFields(data map[string]any, path string) *fields {
	where := "top level"
	if path != "explain" {
		where = "node " + path
	}
	return &fields{data: data, where: where, seen: map[string]struct{}{}}
}

func (f *fields) get(key string) (any, bool) {
	f.seen[key] = struct{}{}
	val, ok := f.data[key]
	if !ok || val == nil {
		return nil, false
	}
	return val, true
}

func (f *fields) fail(format string, args ...any) {
	if f.err != nil {
		return
	}
	f.err = errs.Newf(errs.CodeMalformedInput, "explain json: %s: %s", f.where, fmt.Sprintf(format, args...))
}

func (f *fields) required(key string) float64 {
	val, ok := f.get(key)
	if !ok {
		f.fail("missing %q", key)
		return 0
	}
	n, ok := asFloat(val)
	if !ok {
		f.fail("%q: expected number, got %T", key, val)
	}
	return n
}

func (f *fields) optional(key string) *float64 {
	val, ok := f.get(key)
	if !ok {
		return nil
	}
	n, ok := asFloat(val)
	if !ok {
		f.fail("%q: expected number, got %T", key, val)
		return nil
	}
	return &n
}

func (f *fields) number(key string) float64 {
	if n := f.optional(key); n != nil {
		return *n
	}
	return 0
}

func (f *fields) requiredString(key string) string {
	val, ok := f.get(key)
	if !ok {
		f.fail("missing %q", key)
		return ""
	}
	s := asString(val)
	if s == "" {
		f.fail("empty %q", key)
	}
	return s
}

func (f *fields) str(key string) string {
	val, _ := f.get(key)
	return asString(val)
}

func (f *fields) strings(key string) []string {
	val, _ := f.get(key)
	return asStringSlice(val)
}

func (f *fields) boolean(key string) bool {
	val, ok := f.get(key)
	if !ok {
		return false
	}
	switch v := val.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	f.fail("%q: expected boolean, got %T", key, val)
	return false
}

func (f *fields) slice(key string) []any {
	val, ok := f.get(key)
	if !ok {
		return nil
	}
	items, ok := val.([]any)
	if !ok {
		f.fail("%q: expected array, got %T", key, val)
		return nil
	}
	return items
}

func (f *fields) enum(key, value string, valid bool) {
	if !valid && value != "" {
		f.fail("%q: unknown value %q", key, value)
	}
}

func (f *fields) relation() model.Relation {
	rel := model.Relation{
		Name:   f.requiredString("Relation Name"),
		Schema: f.str("Schema"),
		Alias:  f.str("Alias"),
	}
	if rel.Schema == "" {
		rel.Schema = "public"
	}
	if rel.Alias == "" {
		rel.Alias = rel.Name
	}
	return rel
}

func (f *fields) workers(key string) []model.Worker {
	items := f.slice(key)
	if len(items) == 0 {
		return nil
	}
	out := make([]model.Worker, 0, len(items))
	for i, item := range items {
		obj, err := asObject(item)
		if err != nil {
			f.fail("%q[%d]: %v", key, i, err)
			return nil
		}
		w := &fields{data: obj, where: fmt.Sprintf("%s worker %d", f.where, i), seen: map[string]struct{}{}}
		worker := model.Worker{
			Number:            int(w.number("Worker Number")),
			ActualStartupTime: w.number("Actual Startup Time"),
			ActualTotalTime:   w.number("Actual Total Time"),
			ActualRows:        w.number("Actual Rows"),
			ActualLoops:       w.number("Actual Loops"),
		}
		if w.err != nil {
			f.err = w.err
			return nil
		}
		out = append(out, worker)
	}
	return out
}

func (f *fields) triggers(key string) []model.Trigger {
	items := f.slice(key)
	if len(items) == 0 {
		return nil
	}
	out := make([]model.Trigger, 0, len(items))
	for i, item := range items {
		obj, err := asObject(item)
		if err != nil {
			f.fail("%q[%d]: %v", key, i, err)
			return nil
		}
		t := &fields{data: obj, where: fmt.Sprintf("trigger %d", i), seen: map[string]struct{}{}}
		trigger := model.Trigger{
			Name:     t.str("Trigger Name"),
			Relation: t.str("Relation"),
			Time:     t.number("Time"),
			Calls:    t.number("Calls"),
		}
		if t.err != nil {
			f.err = t.err
			return nil
		}
		out = append(out, trigger)
	}
	return out
}

// extra returns the keys that no reader consumed.
func (f *fields) extra() map[string]any {
	out := map[string]any{}
	for k, v := range f.data {
		if _, ok := f.seen[k]; ok {
			continue
		}
		out[k] = v
	}
	return out
}

func asObject(val any) (map[string]any, error) {
	if val == nil {
		return nil, errors.New("nil object")
	}
	obj, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", val)
	}
	return obj, nil
}

func asString(val any) string {
	if val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func asStringSlice(val any) []string {
	if val == nil {
		return nil
	}
	switch v := val.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, asString(item))
		}
		return out
	case string:
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}

// asFloat accepts finite numbers only; "NaN" and "Inf" strings are rejected.
func asFloat(val any) (float64, bool) {
	var f float64
	switch v := val.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
