package internal

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Value is the tagged union produced by evaluation, per spec.md §3. Each
// concrete type below implements Value as a marker, the way Expr nodes mark
// themselves with IsExpr().
type Value interface {
	IsValue()
}

// IntValue is a signed 64-bit integer. Overflow during arithmetic is a
// runtime error (see ErrOverflowError in errors.go), not a silent wraparound.
type IntValue struct {
	Value int64
}

// BoolValue is a boolean.
type BoolValue struct {
	Value bool
}

// StrValue is an immutable string, used both as an ordinary value and as
// record keys / push targets.
type StrValue struct {
	Value string
}

// ListValue is an ordered sequence of values.
type ListValue struct {
	Elems []Value
}

// RecordValue is a mapping from string keys to values. It is backed by an
// order-preserving map so that literal and merge construction order survives
// for debugging and for the ascending-key JSON-like projection of spec.md
// §6; equality and formula-level semantics never depend on that order.
type RecordValue struct {
	Fields *orderedmap.OrderedMap[string, Value]
}

// NewRecord builds an empty RecordValue ready for insertion.
func NewRecord() RecordValue {
	return RecordValue{Fields: orderedmap.New[string, Value]()}
}

// FunValue is a closure: a parameter name, an unevaluated body, and the
// environment captured at the lambda's definition site. Functions are
// opaque: not equatable, not printable beyond a fixed placeholder
// ("<function>", per spec.md §6).
type FunValue struct {
	Param string
	Body  Expr
	Env   *Env
}

// UnitValue is a dedicated "no value" type, distinct from IntValue{0}, so
// "computed zero" and "computed nothing" are never confused when rendering
// a cell's value to a host (see SPEC_FULL.md §3). No expression of the
// formula language evaluates to it: push returns the value it pushes.
type UnitValue struct{}

func (IntValue) IsValue()    {}
func (BoolValue) IsValue()   {}
func (StrValue) IsValue()    {}
func (ListValue) IsValue()   {}
func (RecordValue) IsValue() {}
func (FunValue) IsValue()    {}
func (UnitValue) IsValue()   {}

// Unit is the single UnitValue instance.
var Unit = UnitValue{}

// Env is a persistent, parent-linked environment frame. Extending an Env
// (binding a new name) never mutates the parent frame, so a closure's
// captured Env is safe to share across later, unrelated mutations of the
// sheet — this is the "Closures & environments" design note of spec.md §9.
type Env struct {
	name   string
	value  Value
	parent *Env
}

// NewEnv returns an empty root environment.
func NewEnv() *Env {
	return nil
}

// Extend returns a new environment with name bound to value, parented on e.
func (e *Env) Extend(name string, value Value) *Env {
	return &Env{name: name, value: value, parent: e}
}

// Lookup resolves name in e or any of its ancestors, innermost first.
func (e *Env) Lookup(name string) (Value, bool) {
	for frame := e; frame != nil; frame = frame.parent {
		if frame.name == name {
			return frame.value, true
		}
	}
	return nil, false
}

// FunctionPlaceholder is the fixed string a FunValue renders as wherever
// values are displayed or serialized (spec.md §6).
const FunctionPlaceholder = "<function>"
