// Package sanitize masks secrets in arbitrary debug payloads before they are shown or copied.
//
// Sanitization never fails: cycles are replaced with a marker, nesting beyond the
// configured depth is truncated and values that can't be represented as JSON are
// replaced with a placeholder.
//
// Only references back to an ancestor of the current path are cycles. A value shared by
// siblings is walked every time it appears instead of being marked as circular.
package sanitize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"unsafe"
)

const (
	// CircularMarker replaces a value that references one of its ancestors.
	CircularMarker = "[circular]"
	// MaskedMarker replaces non string values under sensitive keys.
	MaskedMarker = "[masked]"
	// TruncatedMarker replaces values nested deeper than the max depth.
	TruncatedMarker = "[truncated: maxDepth]"
	// UnserializableMarker replaces values that have no JSON representation.
	UnserializableMarker = "[unserializable]"
	// UnserializableJSON is returned by the stringify helpers when marshaling fails.
	UnserializableJSON = `"` + UnserializableMarker + `"`

	// DefaultMaxDepth is the default max traversal depth.
	DefaultMaxDepth = 12
)

var (
	// DefaultKeyPatterns match keys whose values are always masked.
	DefaultKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)api[_-]?key`),
		regexp.MustCompile(`(?i)\bkey\b`),
		regexp.MustCompile(`(?i)token`),
		regexp.MustCompile(`(?i)authorization`),
		regexp.MustCompile(`(?i)password`),
		regexp.MustCompile(`(?i)secret`),
		regexp.MustCompile(`(?i)cookie`),
		regexp.MustCompile(`(?i)github[_-]?pat`),
	}

	// DefaultValuePatterns match string values that look like credentials.
	DefaultValuePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bsk-[a-z0-9]{8,}\b`),
		regexp.MustCompile(`(?i)\bgithub_pat_[a-z0-9_]{10,}\b`),
		regexp.MustCompile(`(?i)\bbearer\s+[a-z0-9._-]{10,}\b`),
	}

	// DefaultSkipValueMaskKeys are natural language fields, their values are never
	// masked by value patterns.
	DefaultSkipValueMaskKeys = []string{
		"message",
		"prompt",
		"system_prompt",
		"content",
		"raw_message",
		"sent_message",
	}
)

// Options customize a Sanitizer. Nil fields use the defaults.
type Options struct {
	KeyPatterns       []*regexp.Regexp
	ValuePatterns     []*regexp.Regexp
	SkipValueMaskKeys []string
	MaxDepth          int
}

// Report counts the replacements made by a sanitization.
type Report struct {
	Masked    int
	Circular  int
	Truncated int
}

// Sanitizer masks sensitive data of arbitrary values. It is safe for concurrent use.
type Sanitizer struct {
	keyPatterns   []*regexp.Regexp
	valuePatterns []*regexp.Regexp
	skipKeys      map[string]struct{}
	maxDepth      int
}

// New returns a new Sanitizer.
func New(opts Options) *Sanitizer {
	if opts.KeyPatterns == nil {
		opts.KeyPatterns = DefaultKeyPatterns
	}
	if opts.ValuePatterns == nil {
		opts.ValuePatterns = DefaultValuePatterns
	}
	if opts.SkipValueMaskKeys == nil {
		opts.SkipValueMaskKeys = DefaultSkipValueMaskKeys
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	skip := make(map[string]struct{}, len(opts.SkipValueMaskKeys))
	for _, k := range opts.SkipValueMaskKeys {
		skip[k] = struct{}{}
	}

	return &Sanitizer{
		keyPatterns:   opts.KeyPatterns,
		valuePatterns: opts.ValuePatterns,
		skipKeys:      skip,
		maxDepth:      opts.MaxDepth,
	}
}

// Default is the sanitizer with the default options.
var Default = New(Options{})

// Sanitize returns a sanitized copy of v using the default sanitizer.
func Sanitize(v any) any { return Default.Sanitize(v) }

// Sanitize returns a JSON compatible copy of v with the sensitive data masked.
func (s *Sanitizer) Sanitize(v any) any {
	out, _ := s.SanitizeReport(v)
	return out
}

// SanitizeReport is like Sanitize but also returns what was replaced.
func (s *Sanitizer) SanitizeReport(v any) (any, Report) {
	w := &walker{
		s:    s,
		path: map[identity]struct{}{},
	}
	out := w.walk(reflect.ValueOf(v), 0, "")
	return out, w.report
}

// Mask hides a secret keeping only enough to recognize it.
func Mask(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return value
	}

	r := []rune(trimmed)
	if len(r) <= 8 {
		return string(r[0]) + "***" + string(r[len(r)-1])
	}
	return fmt.Sprintf("%s...%s (len=%d)", string(r[:4]), string(r[len(r)-4:]), len(r))
}

func (s *Sanitizer) isSensitiveKey(key string) bool {
	for _, p := range s.keyPatterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func (s *Sanitizer) isSensitiveValue(value string) bool {
	for _, p := range s.valuePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// identity identifies a reference value on the current traversal path.
type identity struct {
	ptr unsafe.Pointer
	typ reflect.Type
	len int
}

type walker struct {
	s      *Sanitizer
	path   map[identity]struct{}
	report Report
}

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	jsonNumberType    = reflect.TypeFor[json.Number]()
)

func (w *walker) walk(v reflect.Value, depth int, parentKey string) any {
	if depth > w.s.maxDepth {
		w.report.Truncated++
		return TruncatedMarker
	}

	if !v.IsValid() {
		return nil
	}

	if v.Type() == jsonNumberType {
		return json.Number(v.String())
	}

	if v.Type().Implements(jsonMarshalerType) && v.Kind() != reflect.Interface {
		if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Map || v.Kind() == reflect.Slice) && v.IsNil() {
			return nil
		}
		return w.walkJSON(v, depth, parentKey)
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return w.walk(v.Elem(), depth, parentKey)

	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Interface()

	case reflect.Float32, reflect.Float64:
		// NaN and infinities have no JSON form, they become null.
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return v.Interface()

	case reflect.String:
		return w.sanitizeString(v.String(), parentKey)

	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		id := identity{ptr: v.UnsafePointer(), typ: v.Type()}
		if !w.enter(id) {
			return CircularMarker
		}
		defer w.leave(id)
		return w.walk(v.Elem(), depth, parentKey)

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		id := identity{ptr: v.UnsafePointer(), typ: v.Type()}
		if !w.enter(id) {
			return CircularMarker
		}
		defer w.leave(id)
		return w.walkMap(v, depth)

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return w.walkJSON(v, depth, parentKey)
		}
		if v.Len() == 0 {
			return []any{}
		}
		id := identity{ptr: v.UnsafePointer(), typ: v.Type(), len: v.Len()}
		if !w.enter(id) {
			return CircularMarker
		}
		defer w.leave(id)
		return w.walkList(v, depth, parentKey)

	case reflect.Array:
		return w.walkList(v, depth, parentKey)

	case reflect.Struct:
		return w.walkJSON(v, depth, parentKey)
	}

	return UnserializableMarker
}

func (w *walker) walkMap(v reflect.Value, depth int) any {
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key := mapKey(iter.Key())
		if w.s.isSensitiveKey(key) {
			w.report.Masked++
			out[key] = maskValue(iter.Value())
			continue
		}
		out[key] = w.walk(iter.Value(), depth+1, key)
	}

	return out
}

// mapKey returns the key of a map entry as a string. Decoders like YAML produce maps
// with non string keys.
func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

func (w *walker) walkList(v reflect.Value, depth int, parentKey string) any {
	out := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = w.walk(v.Index(i), depth+1, parentKey)
	}

	return out
}

// walkJSON sanitizes the generic JSON form of values the walker doesn't
// traverse natively (structs, marshalers, byte slices, non string keyed maps).
func (w *walker) walkJSON(v reflect.Value, depth int, parentKey string) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = UnserializableMarker
		}
	}()

	data, err := json.Marshal(v.Interface())
	if err != nil {
		return UnserializableMarker
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return UnserializableMarker
	}

	return w.walk(reflect.ValueOf(generic), depth, parentKey)
}

func (w *walker) sanitizeString(value, parentKey string) string {
	if _, skip := w.s.skipKeys[parentKey]; skip {
		return value
	}

	if w.s.isSensitiveValue(value) {
		w.report.Masked++
		return Mask(value)
	}

	return value
}

func (w *walker) enter(id identity) bool {
	if _, ok := w.path[id]; ok {
		w.report.Circular++
		return false
	}
	w.path[id] = struct{}{}
	return true
}

func (w *walker) leave(id identity) { delete(w.path, id) }

// maskValue masks the whole value under a sensitive key without traversing it.
func maskValue(v reflect.Value) any {
	// Bounded: self referencing pointers never resolve to a concrete value.
	for i := 0; i < 8 && v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) && !v.IsNil(); i++ {
		v = v.Elem()
	}

	if v.IsValid() && v.Kind() == reflect.String {
		return Mask(v.String())
	}
	return MaskedMarker
}

// SafeStringify returns the compact JSON of v, or UnserializableJSON if v can't be marshaled.
func SafeStringify(v any) string { return safeMarshal(v, "") }

// SafePrettyJSON returns the indented JSON of v, or UnserializableJSON if v can't be marshaled.
func SafePrettyJSON(v any) string { return safeMarshal(v, "  ") }

func safeMarshal(v any, indent string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = UnserializableJSON
		}
	}()

	var (
		data []byte
		err  error
	)
	if indent == "" {
		data, err = json.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", indent)
	}
	if err != nil {
		return UnserializableJSON
	}

	return string(data)
}
