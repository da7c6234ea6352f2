package uow

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Variant is the contract for sum-typed record members. A field whose
// declared type implements Variant and carries `flatten,tag=<K>` emits
// the discriminant under the property key K and then flattens the
// concrete variant's own fields at the current position.
type Variant interface {
	VariantName() string
}

// EntryCloser is the close contract for composite records: the
// snapshot produces an Entry. Record types assembled by hand (rather
// than walked from struct tags) implement this; the append-on-drop
// guard and the reflection walker both defer to it.
type EntryCloser interface {
	CloseEntry() Entry
}

// CloseRecord snapshots a record into its immutable entry form. The
// record is either an EntryCloser or a tagged struct (see fieldTag and
// containerTag for the tag grammar). The returned error is always a
// *ValidationError; guards report it through the diagnostic channel
// instead of returning it, because the producer has already let go by
// the time a record closes.
func CloseRecord(rec any) (Entry, error) {
	if ec, ok := rec.(EntryCloser); ok {
		e := ec.CloseEntry()
		if err := validateEntry(e); err != nil {
			return nil, err.(*ValidationError)
		}
		return e, nil
	}

	rv := reflect.ValueOf(rec)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, &ValidationError{Kind: DiagBadDeclaration, Key: "nil record"}
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, &ValidationError{Kind: DiagBadDeclaration, Key: rv.Type().String()}
	}

	w := &recordWalker{}
	out := &closedEntry{recordType: rv.Type().Name()}
	w.walkStruct(rv, nameContext{root: true}, out)
	if w.err != nil {
		return nil, w.err
	}
	if err := validateEntry(out); err != nil {
		return nil, err.(*ValidationError)
	}
	return out, nil
}

// nameContext is the active naming context a flattened child inherits:
// the style fixed by the nearest enclosing container, plus the
// accumulated (already inflected) flatten-site prefixes.
type nameContext struct {
	style  NameStyle
	prefix string
	root   bool
}

type recordWalker struct {
	err *ValidationError
}

func (w *recordWalker) fail(kind DiagnosticKind, key string) {
	if w.err == nil {
		w.err = &ValidationError{Kind: kind, Key: key}
	}
}

// walkStruct closes one struct's fields into out, in declaration
// order, expanding flattened children in place.
func (w *recordWalker) walkStruct(rv reflect.Value, ctx nameContext, out *closedEntry) {
	rt := rv.Type()

	// container-level attributes come from the blank marker field
	ct := parseContainerTag(rt)
	if ct.hasStyle {
		ctx.style = ct.style
	}
	if ct.hasPrefix && !ct.exact {
		if strings.Contains(ct.prefix, ".") {
			w.fail(DiagBadPrefix, ct.prefix)
			return
		}
		if ctx.root && !prefixDelimited(ct.prefix) {
			w.fail(DiagBadPrefix, ct.prefix)
			return
		}
	}

	for i := 0; i < rt.NumField(); i++ {
		if w.err != nil {
			return
		}
		sf := rt.Field(i)
		if sf.Name == "_" {
			continue
		}
		tag := parseFieldTag(sf.Tag.Get("metric"))
		if tag.omit {
			continue
		}
		if !sf.IsExported() {
			continue
		}

		fv := rv.Field(i)

		// embedded structs without an explicit tag flatten in place
		if sf.Anonymous && sf.Tag.Get("metric") == "" {
			w.flattenField(sf, fv, fieldTag{flatten: true}, ctx, out)
			continue
		}

		switch {
		case tag.timestamp:
			w.closeTimestamp(sf, fv, tag, out)
		case tag.flattenEntry:
			w.flattenEntryField(sf, fv, tag, out)
		case tag.flatten:
			w.flattenField(sf, fv, tag, ctx, out)
		default:
			w.closeScalar(sf, fv, tag, ct, ctx, out)
		}
	}
}

// fieldName composes the emitted name for a scalar field, per the
// composition algorithm: an explicit name skips the container prefix
// and its body is not inflected; otherwise the container prefix and
// base identifier concatenate and inflect as a single identifier. The
// accumulated flatten-site prefix always prepends.
func fieldName(sf reflect.StructField, tag fieldTag, ct containerTag, ctx nameContext) string {
	if tag.name != "" {
		return ctx.prefix + tag.name
	}
	base := sf.Name
	if ct.hasPrefix {
		if ct.exact {
			return ctx.prefix + ct.prefix + ctx.style.Apply(base)
		}
		return ctx.prefix + ctx.style.Apply(ct.prefix+base)
	}
	return ctx.prefix + ctx.style.Apply(base)
}

func (w *recordWalker) closeTimestamp(sf reflect.StructField, fv reflect.Value, tag fieldTag, out *closedEntry) {
	v, ok := w.closeLeaf(sf, fv, tag)
	if !ok {
		return
	}
	if v.kind != kindTime {
		w.fail(DiagBadDeclaration, sf.Name+": timestamp field must close to a time value")
		return
	}
	if out.hasTime {
		w.fail(DiagDuplicateTimestamp, sf.Name)
		return
	}
	out.timestamp = v.t
	out.hasTime = true
}

// flattenEntryField embeds a self-keyed entry: the child's keys pass
// through unchanged and the flatten-site prefix is deliberately
// skipped, so map-backed entries never allocate per key.
func (w *recordWalker) flattenEntryField(sf reflect.StructField, fv reflect.Value, _ fieldTag, out *closedEntry) {
	if fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			return
		}
	}
	iv := fv.Interface()
	switch x := iv.(type) {
	case EntryCloser:
		out.fields = append(out.fields, closedField{sub: x.CloseEntry()})
		return
	case Entry:
		out.fields = append(out.fields, closedField{sub: x})
		return
	}
	if fv.Kind() == reflect.Map && fv.Type().Key().Kind() == reflect.String {
		if entry := closeMapEntry(fv); entry != nil {
			out.fields = append(out.fields, closedField{sub: entry})
		}
		return
	}
	w.fail(DiagBadDeclaration, sf.Name+": flattenentry requires an entry or a string-keyed map")
}

// flattenField expands a nested record's fields at the current
// position, extending the naming context with the flatten-site prefix.
func (w *recordWalker) flattenField(sf reflect.StructField, fv reflect.Value, tag fieldTag, ctx nameContext, out *closedEntry) {
	for fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			return
		}
		fv = fv.Elem()
	}

	child := ctx
	child.root = false
	if tag.hasPrefix {
		if tag.exact {
			child.prefix = ctx.prefix + tag.prefix
		} else {
			if strings.Contains(tag.prefix, ".") {
				w.fail(DiagBadPrefix, tag.prefix)
				return
			}
			child.prefix = ctx.prefix + ctx.style.ApplyPrefix(tag.prefix)
		}
	}

	// tagged variant: discriminant first, then the variant's fields
	if tag.tagKey != "" {
		variant, ok := fv.Interface().(Variant)
		if !ok && fv.CanAddr() {
			variant, ok = fv.Addr().Interface().(Variant)
		}
		if !ok {
			w.fail(DiagBadDeclaration, sf.Name+": tag= requires a Variant")
			return
		}
		out.fields = append(out.fields, closedField{
			name:  ctx.prefix + tag.tagKey,
			value: String(variant.VariantName()),
		})
	}

	if ec, ok := fv.Interface().(EntryCloser); ok {
		out.fields = append(out.fields, closedField{sub: ec.CloseEntry()})
		return
	}
	if fv.Kind() != reflect.Struct {
		w.fail(DiagBadDeclaration, sf.Name+": flatten requires a struct")
		return
	}
	w.walkStruct(fv, child, out)
}

func (w *recordWalker) closeScalar(sf reflect.StructField, fv reflect.Value, tag fieldTag, ct containerTag, ctx nameContext, out *closedEntry) {
	v, ok := w.closeLeaf(sf, fv, tag)
	if !ok {
		return
	}

	name := fieldName(sf, tag, ct, ctx)

	if tag.unit != "" {
		v = v.WithUnit(parseUnit(tag.unit))
	}
	if tag.format != "" {
		f, known := formatters[tag.format]
		if !known {
			w.fail(DiagBadDeclaration, sf.Name+": unknown formatter "+tag.format)
			return
		}
		v = String(f(v))
	}

	out.fields = append(out.fields, closedField{name: name, value: v})
	if tag.sampleGroup {
		out.groups = append(out.groups, SampleGroupElement{Key: name, Value: v.StringValue()})
	}
}

// closeLeaf snapshots one leaf field into a Value: a ValueCloser's
// snapshot, a Stringer's rendering, or a plain scalar.
func (w *recordWalker) closeLeaf(sf reflect.StructField, fv reflect.Value, tag fieldTag) (Value, bool) {
	for fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			return Value{}, true
		}
		// ValueCloser is normally on the pointer receiver
		if !tag.noClose {
			if vc, ok := fv.Interface().(ValueCloser); ok {
				return vc.CloseValue(), true
			}
		}
		fv = fv.Elem()
	}

	if !tag.noClose {
		if vc, ok := fv.Interface().(ValueCloser); ok {
			return vc.CloseValue(), true
		}
		if fv.CanAddr() {
			if vc, ok := fv.Addr().Interface().(ValueCloser); ok {
				return vc.CloseValue(), true
			}
		}
	}

	switch iv := fv.Interface().(type) {
	case Value:
		return iv, true
	case time.Time:
		return Time(iv), true
	case time.Duration:
		return Duration(iv), true
	}

	if tag.stringer {
		if s, ok := fv.Interface().(fmt.Stringer); ok {
			return String(s.String()), true
		}
		w.fail(DiagBadDeclaration, sf.Name+": string option requires fmt.Stringer")
		return Value{}, false
	}

	switch fv.Kind() {
	case reflect.Bool:
		return Bool(fv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(fv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Uint(fv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return Float(fv.Float()), true
	case reflect.String:
		return String(fv.String()), true
	}

	if s, ok := fv.Interface().(fmt.Stringer); ok {
		return String(s.String()), true
	}

	w.fail(DiagBadDeclaration, sf.Name+": type "+fv.Type().String()+" is not closable; use flatten for sub-entries")
	return Value{}, false
}

// closeMapEntry materializes a string-keyed map as a self-keyed entry.
// Keys are emitted in sorted order for deterministic output.
func closeMapEntry(fv reflect.Value) Entry {
	if fv.Len() == 0 {
		return nil
	}
	keys := make([]string, 0, fv.Len())
	iter := fv.MapRange()
	for iter.Next() {
		keys = append(keys, iter.Key().String())
	}
	sort.Strings(keys)

	out := &closedEntry{recordType: fv.Type().String()}
	w := &recordWalker{}
	for _, k := range keys {
		mv := fv.MapIndex(reflect.ValueOf(k))
		v, ok := w.closeLeaf(reflect.StructField{Name: k}, mv, fieldTag{})
		if !ok || v.IsEmpty() {
			continue
		}
		out.fields = append(out.fields, closedField{name: k, value: v})
	}
	return out
}

// shortTypeName names a record type for diagnostics.
func shortTypeName(rec any) string {
	t := reflect.TypeOf(rec)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "entry"
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// fieldTag is the parsed form of a `metric:"..."` struct tag.
type fieldTag struct {
	name string

	flatten      bool
	flattenEntry bool
	noClose      bool
	timestamp    bool
	sampleGroup  bool
	omit         bool
	stringer     bool

	unit   string
	format string
	tagKey string

	prefix    string
	exact     bool
	hasPrefix bool
}

func parseFieldTag(tag string) fieldTag {
	var ft fieldTag
	if tag == "" {
		return ft
	}
	parts := strings.Split(tag, ",")
	ft.name = parts[0]
	if ft.name == "-" {
		ft.omit = true
		ft.name = ""
		return ft
	}
	for _, opt := range parts[1:] {
		key, val, _ := strings.Cut(opt, "=")
		switch key {
		case "flatten":
			ft.flatten = true
		case "flattenentry":
			ft.flattenEntry = true
		case "noclose":
			ft.noClose = true
		case "timestamp":
			ft.timestamp = true
		case "samplegroup":
			ft.sampleGroup = true
		case "omit":
			ft.omit = true
		case "string":
			ft.stringer = true
		case "unit":
			ft.unit = val
		case "format":
			ft.format = val
		case "tag":
			ft.tagKey = val
		case "prefix":
			ft.prefix = val
			ft.hasPrefix = true
			ft.exact = false
		case "exactprefix":
			ft.prefix = val
			ft.hasPrefix = true
			ft.exact = true
		}
	}
	return ft
}

// containerTag is the parsed form of the blank marker field's tag:
//
//	_ struct{} `metric:"rename_all=PascalCase,prefix=my_op_"`
type containerTag struct {
	style     NameStyle
	hasStyle  bool
	prefix    string
	exact     bool
	hasPrefix bool
}

func parseContainerTag(rt reflect.Type) containerTag {
	var ct containerTag
	if rt.Kind() != reflect.Struct {
		return ct
	}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if sf.Name != "_" {
			continue
		}
		for _, opt := range strings.Split(sf.Tag.Get("metric"), ",") {
			key, val, _ := strings.Cut(opt, "=")
			switch key {
			case "rename_all":
				if style, ok := parseNameStyle(val); ok {
					ct.style = style
					ct.hasStyle = true
				}
			case "prefix":
				ct.prefix = val
				ct.hasPrefix = true
				ct.exact = false
			case "exactprefix":
				ct.prefix = val
				ct.hasPrefix = true
				ct.exact = true
			}
		}
	}
	return ct
}
