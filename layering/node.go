package layering

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Node.
type Kind uint8

const (
	// KindNull is the zero Node: an absent or explicitly empty value.
	KindNull Kind = iota
	// KindScalar holds a string, bool, int or float64.
	KindScalar
	// KindSequence holds an ordered list of nodes.
	KindSequence
	// KindMapping holds string keys in declaration order.
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Node is a configuration tree value. Mappings and sequences behave like Go
// maps and slices: copying a Node shares its children, Clone detaches them.
type Node struct {
	kind   Kind
	scalar any
	items  []Node
	fields *fields
}

type fields struct {
	keys   []string
	values map[string]Node
}

// Entry is a key/value pair used to build mappings in declaration order.
type Entry struct {
	Key   string
	Value Node
}

// Null returns the null node.
func Null() Node {
	return Node{}
}

// Scalar wraps a leaf value. Integer kinds normalise to int and float kinds to
// float64 so that equality does not depend on the decoder that produced them.
func Scalar(value any) Node {
	if value == nil {
		return Null()
	}
	return Node{kind: KindScalar, scalar: normaliseScalar(value)}
}

// Sequence builds a sequence holding copies of items.
func Sequence(items ...Node) Node {
	out := make([]Node, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return Node{kind: KindSequence, items: out}
}

// NewMapping builds a mapping from entries, keeping their order. Repeated keys
// keep the first position and the last value.
func NewMapping(entries ...Entry) Node {
	node := Node{kind: KindMapping, fields: newFields(len(entries))}
	for _, entry := range entries {
		node.fields.set(entry.Key, entry.Value.Clone())
	}
	return node
}

func newFields(size int) *fields {
	return &fields{
		keys:   make([]string, 0, size),
		values: make(map[string]Node, size),
	}
}

func (f *fields) set(key string, value Node) {
	if _, exists := f.values[key]; !exists {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func (f *fields) remove(key string) bool {
	if _, exists := f.values[key]; !exists {
		return false
	}
	delete(f.values, key)
	for i, existing := range f.keys {
		if existing == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
	return true
}

// Kind reports the variant held by n.
func (n Node) Kind() Kind {
	return n.kind
}

// IsNull reports whether n is the null node.
func (n Node) IsNull() bool {
	return n.kind == KindNull
}

// IsMapping reports whether n is a mapping.
func (n Node) IsMapping() bool {
	return n.kind == KindMapping
}

// IsSequence reports whether n is a sequence.
func (n Node) IsSequence() bool {
	return n.kind == KindSequence
}

// Value returns the scalar payload, or nil for non-scalar nodes.
func (n Node) Value() any {
	if n.kind != KindScalar {
		return nil
	}
	return n.scalar
}

// String returns the scalar rendered as text, or "" for non-scalars.
func (n Node) String() string {
	if n.kind != KindScalar {
		return ""
	}
	if s, ok := n.scalar.(string); ok {
		return s
	}
	return fmt.Sprint(n.scalar)
}

// Int returns the scalar as an int. Strings holding integers and floats with
// no fractional part are accepted.
func (n Node) Int() (int, bool) {
	if n.kind != KindScalar {
		return 0, false
	}
	switch v := n.scalar.(type) {
	case int:
		return v, true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// Len returns the number of items or keys; zero for scalars and null.
func (n Node) Len() int {
	switch n.kind {
	case KindSequence:
		return len(n.items)
	case KindMapping:
		return len(n.fields.keys)
	default:
		return 0
	}
}

// Items returns the sequence elements in order. Nested containers are shared
// with n.
func (n Node) Items() []Node {
	if n.kind != KindSequence {
		return nil
	}
	out := make([]Node, len(n.items))
	copy(out, n.items)
	return out
}

// Index returns the i-th sequence element or the null node.
func (n Node) Index(i int) Node {
	if n.kind != KindSequence || i < 0 || i >= len(n.items) {
		return Null()
	}
	return n.items[i]
}

// Keys returns the mapping keys in declaration order.
func (n Node) Keys() []string {
	if n.kind != KindMapping {
		return nil
	}
	out := make([]string, len(n.fields.keys))
	copy(out, n.fields.keys)
	return out
}

// Get returns the value stored under key.
func (n Node) Get(key string) (Node, bool) {
	if n.kind != KindMapping {
		return Null(), false
	}
	value, ok := n.fields.values[key]
	return value, ok
}

// Has reports whether key is present in a mapping.
func (n Node) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// Lookup walks a dot separated path. Numeric segments index into sequences.
func (n Node) Lookup(path string) (Node, bool) {
	if path == "" {
		return n, true
	}
	current := n
	for _, segment := range strings.Split(path, ".") {
		switch current.kind {
		case KindMapping:
			next, ok := current.fields.values[segment]
			if !ok {
				return Null(), false
			}
			current = next
		case KindSequence:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(current.items) {
				return Null(), false
			}
			current = current.items[idx]
		default:
			return Null(), false
		}
	}
	return current, true
}

// Set stores value under key. A non-mapping receiver becomes an empty mapping
// first, matching the replacement rule used by MergeInto.
func (n *Node) Set(key string, value Node) {
	if n.kind != KindMapping {
		*n = Node{kind: KindMapping, fields: newFields(1)}
	}
	n.fields.set(key, value)
}

// SetPath stores value at a dot separated path, creating mappings on the way.
func (n *Node) SetPath(path string, value Node) {
	segments := strings.Split(path, ".")
	if len(segments) == 1 {
		n.Set(path, value)
		return
	}
	child, ok := n.Get(segments[0])
	if !ok || child.kind != KindMapping {
		child = NewMapping()
	}
	child.SetPath(strings.Join(segments[1:], "."), value)
	n.Set(segments[0], child)
}

// Delete removes key from a mapping and reports whether it was present.
func (n *Node) Delete(key string) bool {
	if n.kind != KindMapping {
		return false
	}
	return n.fields.remove(key)
}

// Clone returns a deep copy sharing no containers with n.
func (n Node) Clone() Node {
	switch n.kind {
	case KindSequence:
		items := make([]Node, len(n.items))
		for i := range n.items {
			items[i] = n.items[i].Clone()
		}
		return Node{kind: KindSequence, items: items}
	case KindMapping:
		clone := newFields(len(n.fields.keys))
		for _, key := range n.fields.keys {
			clone.keys = append(clone.keys, key)
			clone.values[key] = n.fields.values[key].Clone()
		}
		return Node{kind: KindMapping, fields: clone}
	default:
		return n
	}
}

// Equal reports deep equality. Mapping key order is not significant; numeric
// scalars compare by value across int and float64.
func (n Node) Equal(other Node) bool {
	if n.kind != other.kind {
		return false
	}
	switch n.kind {
	case KindNull:
		return true
	case KindScalar:
		return scalarsEqual(n.scalar, other.scalar)
	case KindSequence:
		if len(n.items) != len(other.items) {
			return false
		}
		for i := range n.items {
			if !n.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(n.fields.keys) != len(other.fields.keys) {
			return false
		}
		for key, value := range n.fields.values {
			theirs, ok := other.fields.values[key]
			if !ok || !value.Equal(theirs) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Native converts the tree into map[string]any, []any and scalar values.
func (n Node) Native() any {
	switch n.kind {
	case KindScalar:
		return n.scalar
	case KindSequence:
		out := make([]any, len(n.items))
		for i := range n.items {
			out[i] = n.items[i].Native()
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(n.fields.keys))
		for _, key := range n.fields.keys {
			out[key] = n.fields.values[key].Native()
		}
		return out
	default:
		return nil
	}
}

// NativeMap is Native for mappings; other kinds yield an empty map.
func (n Node) NativeMap() map[string]any {
	if m, ok := n.Native().(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// Paths lists leaf paths in declaration order. Scalars, sequences, null values
// and empty mappings are leaves.
func (n Node) Paths() []string {
	var out []string
	n.collectPaths("", &out)
	return out
}

func (n Node) collectPaths(prefix string, out *[]string) {
	if n.kind != KindMapping || len(n.fields.keys) == 0 {
		if prefix != "" {
			*out = append(*out, prefix)
		}
		return
	}
	for _, key := range n.fields.keys {
		n.fields.values[key].collectPaths(JoinPath(prefix, key), out)
	}
}

// JoinPath appends segment to a dot separated prefix.
func JoinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}

// FromNative converts decoded data into a Node. Go maps have no order, so their
// keys are sorted to keep conversion deterministic.
func FromNative(value any) (Node, error) {
	switch typed := value.(type) {
	case nil:
		return Null(), nil
	case Node:
		return typed.Clone(), nil
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return Scalar(typed), nil
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		node := Node{kind: KindMapping, fields: newFields(len(keys))}
		for _, key := range keys {
			child, err := FromNative(typed[key])
			if err != nil {
				return Null(), fmt.Errorf("%s: %w", key, err)
			}
			node.fields.set(key, child)
		}
		return node, nil
	case []any:
		items := make([]Node, len(typed))
		for i, item := range typed {
			child, err := FromNative(item)
			if err != nil {
				return Null(), fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = child
		}
		return Node{kind: KindSequence, items: items}, nil
	}
	return fromReflect(reflect.ValueOf(value))
}

// MustFromNative is FromNative for literals known to convert.
func MustFromNative(value any) Node {
	node, err := FromNative(value)
	if err != nil {
		panic(err)
	}
	return node
}

func fromReflect(rv reflect.Value) (Node, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return FromNative(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		items := make([]Node, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			child, err := FromNative(rv.Index(i).Interface())
			if err != nil {
				return Null(), fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = child
		}
		return Node{kind: KindSequence, items: items}, nil
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		values := make(map[string]reflect.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			keys = append(keys, key)
			values[key] = iter.Value()
		}
		sort.Strings(keys)
		node := Node{kind: KindMapping, fields: newFields(len(keys))}
		for _, key := range keys {
			child, err := FromNative(values[key].Interface())
			if err != nil {
				return Null(), fmt.Errorf("%s: %w", key, err)
			}
			node.fields.set(key, child)
		}
		return node, nil
	case reflect.String:
		return Scalar(rv.String()), nil
	case reflect.Bool:
		return Scalar(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Scalar(rv.Int()), nil
	case reflect.Float32, reflect.Float64:
		return Scalar(rv.Float()), nil
	default:
		return Null(), fmt.Errorf("layering: unsupported value of type %s", rv.Type())
	}
}

func normaliseScalar(value any) any {
	switch v := value.(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		return int(v)
	case float32:
		return float64(v)
	case float64, string, bool:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func scalarsEqual(a, b any) bool {
	af, aNumeric := numericValue(a)
	bf, bNumeric := numericValue(b)
	if aNumeric && bNumeric {
		return af == bf
	}
	return a == b
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
