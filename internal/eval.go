package internal

import (
	"math"
	"sort"
)

// Push is one pending push produced during a cell's evaluation: the target
// cell, a per-evaluation sequence number (ascending in call order within the
// source cell), and the pushed value.
type Push struct {
	Target CellID
	Seq    uint32
	Value  Value
}

// MailboxEntry is one value delivered to a cell by an upstream push, as
// seen by that cell's read() call.
type MailboxEntry struct {
	Source CellID
	Seq    uint32
	Value  Value
}

// EvalContext carries everything evaluation needs beyond the expression and
// its environment: which cell is being evaluated, the mailbox it may read,
// and the buffer pushes accumulate into. Per the "Push-buffer threading"
// design note (spec.md §9), this is an explicit parameter rather than
// thread-local state, so Eval remains a pure function of its inputs.
type EvalContext struct {
	Cell    CellID
	Mailbox []MailboxEntry
	Pushes  []Push
	seq     uint32
}

// NewEvalContext builds a fresh context for evaluating cell in one pass,
// given the mailbox entries delivered to it so far in the pass.
func NewEvalContext(cell CellID, mailbox []MailboxEntry) *EvalContext {
	return &EvalContext{Cell: cell, Mailbox: mailbox}
}

// Eval evaluates expr in env under ctx, returning its value or the first
// EvalError encountered. Eval never mutates env; it only extends it (via
// Env.Extend) for the duration of sub-evaluations, and only appends to
// ctx.Pushes, never removing or reordering entries already there.
func Eval(expr Expr, env *Env, ctx *EvalContext) (Value, error) {
	switch e := expr.(type) {
	case IntLit:
		return IntValue{Value: e.Value}, nil
	case BoolLit:
		return BoolValue{Value: e.Value}, nil
	case StrLit:
		return StrValue{Value: e.Value}, nil
	case Var:
		v, ok := env.Lookup(e.Name)
		if !ok {
			return nil, newEvalError(ErrUnboundVariable, "unbound variable %q", e.Name)
		}
		return v, nil
	case ListLit:
		elems := make([]Value, 0, len(e.Elems))
		for _, elemExpr := range e.Elems {
			v, err := Eval(elemExpr, env, ctx)
			if err != nil {
				return nil, err
			}
			elems = append(elems, v)
		}
		return ListValue{Elems: elems}, nil
	case RecordLit:
		rec := NewRecord()
		for _, f := range e.Fields {
			v, err := Eval(f.Value, env, ctx)
			if err != nil {
				return nil, err
			}
			rec.Fields.Set(f.Key, v)
		}
		return rec, nil
	case Lambda:
		return FunValue{Param: e.Param, Body: e.Body, Env: env}, nil
	case App:
		return evalApp(e, env, ctx)
	case Let:
		return evalLet(e, env, ctx)
	case BinOp:
		return evalBinOp(e, env, ctx)
	case UnOp:
		return evalUnOp(e, env, ctx)
	case Index:
		return evalIndex(e, env, ctx)
	case FieldAccess:
		target, err := Eval(e.Target, env, ctx)
		if err != nil {
			return nil, err
		}
		return indexRecord(target, e.Name)
	case RecordMerge:
		return evalRecordMerge(e, env, ctx)
	case BuiltinCall:
		return evalBuiltinCall(e, env, ctx)
	default:
		return nil, newEvalError(ErrTypeError, "unhandled expression node %T", expr)
	}
}

func evalApp(e App, env *Env, ctx *EvalContext) (Value, error) {
	fnVal, err := Eval(e.Fn, env, ctx)
	if err != nil {
		return nil, err
	}
	fn, ok := fnVal.(FunValue)
	if !ok {
		return nil, newEvalError(ErrTypeError, "cannot call a value of type %s", typeName(fnVal))
	}
	argVal, err := Eval(e.Arg, env, ctx)
	if err != nil {
		return nil, err
	}
	return Eval(fn.Body, fn.Env.Extend(fn.Param, argVal), ctx)
}

func evalLet(e Let, env *Env, ctx *EvalContext) (Value, error) {
	scope := env
	for _, b := range e.Bindings {
		v, err := Eval(b.Value, scope, ctx) // sees only prior bindings, per spec.md §4.2
		if err != nil {
			return nil, err
		}
		scope = scope.Extend(b.Name, v)
	}
	return Eval(e.Body, scope, ctx)
}

func evalUnOp(e UnOp, env *Env, ctx *EvalContext) (Value, error) {
	v, err := Eval(e.Operand, env, ctx)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case TokNot:
		b, ok := v.(BoolValue)
		if !ok {
			return nil, newEvalError(ErrTypeError, "'not' requires a Bool operand, got %s", typeName(v))
		}
		return BoolValue{Value: !b.Value}, nil
	case TokMinus:
		i, ok := v.(IntValue)
		if !ok {
			return nil, newEvalError(ErrTypeError, "unary '-' requires an Int operand, got %s", typeName(v))
		}
		if i.Value == math.MinInt64 {
			return nil, newEvalError(ErrOverflowError, "integer overflow in -(%d)", i.Value)
		}
		return IntValue{Value: -i.Value}, nil
	default:
		return nil, newEvalError(ErrTypeError, "unsupported unary operator")
	}
}

func evalBinOp(e BinOp, env *Env, ctx *EvalContext) (Value, error) {
	// and/or short-circuit: the right operand is only evaluated when needed.
	if e.Op == TokAnd || e.Op == TokOr {
		leftVal, err := Eval(e.Left, env, ctx)
		if err != nil {
			return nil, err
		}
		left, ok := leftVal.(BoolValue)
		if !ok {
			return nil, newEvalError(ErrTypeError, "'%s' requires Bool operands, got %s", tokenNames[e.Op], typeName(leftVal))
		}
		if e.Op == TokAnd && !left.Value {
			return BoolValue{Value: false}, nil
		}
		if e.Op == TokOr && left.Value {
			return BoolValue{Value: true}, nil
		}
		rightVal, err := Eval(e.Right, env, ctx)
		if err != nil {
			return nil, err
		}
		right, ok := rightVal.(BoolValue)
		if !ok {
			return nil, newEvalError(ErrTypeError, "'%s' requires Bool operands, got %s", tokenNames[e.Op], typeName(rightVal))
		}
		return right, nil
	}

	left, err := Eval(e.Left, env, ctx)
	if err != nil {
		return nil, err
	}
	right, err := Eval(e.Right, env, ctx)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case TokPlus, TokMinus, TokStar:
		return evalArith(e.Op, left, right)
	case TokLt, TokLe, TokGt, TokGe:
		return evalOrderComparison(e.Op, left, right)
	case TokEq:
		eq, err := valuesEqual(left, right)
		if err != nil {
			return nil, err
		}
		return BoolValue{Value: eq}, nil
	case TokNeq:
		eq, err := valuesEqual(left, right)
		if err != nil {
			return nil, err
		}
		return BoolValue{Value: !eq}, nil
	default:
		return nil, newEvalError(ErrTypeError, "unsupported binary operator")
	}
}

func evalArith(op TokenKind, left, right Value) (Value, error) {
	l, lok := left.(IntValue)
	r, rok := right.(IntValue)
	if !lok || !rok {
		return nil, newEvalError(ErrTypeError, "arithmetic requires Int operands, got %s and %s", typeName(left), typeName(right))
	}
	switch op {
	case TokPlus:
		sum := l.Value + r.Value
		if (r.Value > 0 && sum < l.Value) || (r.Value < 0 && sum > l.Value) {
			return nil, newEvalError(ErrOverflowError, "integer overflow in %d + %d", l.Value, r.Value)
		}
		return IntValue{Value: sum}, nil
	case TokMinus:
		diff := l.Value - r.Value
		if (r.Value < 0 && diff < l.Value) || (r.Value > 0 && diff > l.Value) {
			return nil, newEvalError(ErrOverflowError, "integer overflow in %d - %d", l.Value, r.Value)
		}
		return IntValue{Value: diff}, nil
	case TokStar:
		product := l.Value * r.Value
		if (l.Value != 0 && product/l.Value != r.Value) || (l.Value == -1 && r.Value == math.MinInt64) {
			return nil, newEvalError(ErrOverflowError, "integer overflow in %d * %d", l.Value, r.Value)
		}
		return IntValue{Value: product}, nil
	default:
		return nil, newEvalError(ErrTypeError, "unsupported arithmetic operator")
	}
}

func evalOrderComparison(op TokenKind, left, right Value) (Value, error) {
	l, lok := left.(IntValue)
	r, rok := right.(IntValue)
	if !lok || !rok {
		return nil, newEvalError(ErrTypeError, "order comparisons require Int operands, got %s and %s", typeName(left), typeName(right))
	}
	var result bool
	switch op {
	case TokLt:
		result = l.Value < r.Value
	case TokLe:
		result = l.Value <= r.Value
	case TokGt:
		result = l.Value > r.Value
	case TokGe:
		result = l.Value >= r.Value
	}
	return BoolValue{Value: result}, nil
}

// valuesEqual implements == / /= : scalars compare by value, Lists and
// Records compare structurally, and Fun values are never equal to anything
// (they are opaque, per spec.md §3).
func valuesEqual(a, b Value) (bool, error) {
	switch av := a.(type) {
	case IntValue:
		bv, ok := b.(IntValue)
		return ok && av.Value == bv.Value, nil
	case BoolValue:
		bv, ok := b.(BoolValue)
		return ok && av.Value == bv.Value, nil
	case StrValue:
		bv, ok := b.(StrValue)
		return ok && av.Value == bv.Value, nil
	case UnitValue:
		_, ok := b.(UnitValue)
		return ok, nil
	case ListValue:
		bv, ok := b.(ListValue)
		if !ok || len(av.Elems) != len(bv.Elems) {
			return false, nil
		}
		for i := range av.Elems {
			eq, err := valuesEqual(av.Elems[i], bv.Elems[i])
			if err != nil || !eq {
				return eq, err
			}
		}
		return true, nil
	case RecordValue:
		bv, ok := b.(RecordValue)
		if !ok || av.Fields.Len() != bv.Fields.Len() {
			return false, nil
		}
		for pair := av.Fields.Oldest(); pair != nil; pair = pair.Next() {
			bVal, present := bv.Fields.Get(pair.Key)
			if !present {
				return false, nil
			}
			eq, err := valuesEqual(pair.Value, bVal)
			if err != nil || !eq {
				return eq, err
			}
		}
		return true, nil
	case FunValue:
		return false, nil
	default:
		return false, newEvalError(ErrTypeError, "cannot compare value of type %s", typeName(a))
	}
}

func evalIndex(e Index, env *Env, ctx *EvalContext) (Value, error) {
	target, err := Eval(e.Target, env, ctx)
	if err != nil {
		return nil, err
	}
	key, err := Eval(e.Key, env, ctx)
	if err != nil {
		return nil, err
	}
	switch t := target.(type) {
	case ListValue:
		idx, ok := key.(IntValue)
		if !ok {
			return nil, newEvalError(ErrTypeError, "list index must be an Int, got %s", typeName(key))
		}
		if idx.Value < 0 || idx.Value >= int64(len(t.Elems)) {
			return nil, newEvalError(ErrIndexError, "index %d out of range [0, %d)", idx.Value, len(t.Elems))
		}
		return t.Elems[idx.Value], nil
	case RecordValue:
		k, ok := key.(StrValue)
		if !ok {
			return nil, newEvalError(ErrTypeError, "record index must be a Str, got %s", typeName(key))
		}
		return indexRecord(target, k.Value)
	default:
		return nil, newEvalError(ErrTypeError, "cannot index into a value of type %s", typeName(target))
	}
}

func indexRecord(target Value, name string) (Value, error) {
	rec, ok := target.(RecordValue)
	if !ok {
		return nil, newEvalError(ErrTypeError, "field access requires a Record, got %s", typeName(target))
	}
	v, ok := rec.Fields.Get(name)
	if !ok {
		return nil, newEvalError(ErrIndexError, "missing key %q", name)
	}
	return v, nil
}

func evalRecordMerge(e RecordMerge, env *Env, ctx *EvalContext) (Value, error) {
	leftVal, err := Eval(e.Left, env, ctx)
	if err != nil {
		return nil, err
	}
	rightVal, err := Eval(e.Right, env, ctx)
	if err != nil {
		return nil, err
	}
	left, ok := leftVal.(RecordValue)
	if !ok {
		return nil, newEvalError(ErrTypeError, "'//' requires Record operands, got %s", typeName(leftVal))
	}
	right, ok := rightVal.(RecordValue)
	if !ok {
		return nil, newEvalError(ErrTypeError, "'//' requires Record operands, got %s", typeName(rightVal))
	}
	merged := NewRecord()
	for pair := left.Fields.Oldest(); pair != nil; pair = pair.Next() {
		merged.Fields.Set(pair.Key, pair.Value)
	}
	for pair := right.Fields.Oldest(); pair != nil; pair = pair.Next() {
		merged.Fields.Set(pair.Key, pair.Value) // right wins on conflict
	}
	return merged, nil
}

func evalBuiltinCall(e BuiltinCall, env *Env, ctx *EvalContext) (Value, error) {
	switch e.Name {
	case "map":
		return evalMap(e, env, ctx)
	case "filter":
		return evalFilter(e, env, ctx)
	case "fold":
		return evalFold(e, env, ctx)
	case "push":
		return evalPush(e, env, ctx)
	case "read":
		return evalRead(e, ctx)
	default:
		return nil, newEvalError(ErrUnknownBuiltin, "unknown builtin %q", e.Name)
	}
}

func applyFun(fnVal Value, args []Value, ctx *EvalContext) (Value, error) {
	fn, ok := fnVal.(FunValue)
	if !ok {
		return nil, newEvalError(ErrTypeError, "expected a function, got %s", typeName(fnVal))
	}
	if len(args) != 1 {
		return nil, newEvalError(ErrArityMismatch, "expected 1 argument, got %d", len(args))
	}
	return Eval(fn.Body, fn.Env.Extend(fn.Param, args[0]), ctx)
}

func evalMap(e BuiltinCall, env *Env, ctx *EvalContext) (Value, error) {
	fnVal, err := Eval(e.Args[0], env, ctx)
	if err != nil {
		return nil, err
	}
	coll, err := Eval(e.Args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	switch c := coll.(type) {
	case ListValue:
		out := make([]Value, len(c.Elems))
		for i, elem := range c.Elems {
			v, err := applyFun(fnVal, []Value{elem}, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return ListValue{Elems: out}, nil
	case RecordValue:
		// value-only callback, per spec.md §9's open-question resolution.
		out := NewRecord()
		for pair := c.Fields.Oldest(); pair != nil; pair = pair.Next() {
			v, err := applyFun(fnVal, []Value{pair.Value}, ctx)
			if err != nil {
				return nil, err
			}
			out.Fields.Set(pair.Key, v)
		}
		return out, nil
	default:
		return nil, newEvalError(ErrTypeError, "map requires a List or Record, got %s", typeName(coll))
	}
}

func evalFilter(e BuiltinCall, env *Env, ctx *EvalContext) (Value, error) {
	fnVal, err := Eval(e.Args[0], env, ctx)
	if err != nil {
		return nil, err
	}
	coll, err := Eval(e.Args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	switch c := coll.(type) {
	case ListValue:
		var out []Value
		for _, elem := range c.Elems {
			keep, err := applyPredicate(fnVal, elem, ctx)
			if err != nil {
				return nil, err
			}
			if keep {
				out = append(out, elem)
			}
		}
		return ListValue{Elems: out}, nil
	case RecordValue:
		out := NewRecord()
		for pair := c.Fields.Oldest(); pair != nil; pair = pair.Next() {
			keep, err := applyPredicate(fnVal, pair.Value, ctx)
			if err != nil {
				return nil, err
			}
			if keep {
				out.Fields.Set(pair.Key, pair.Value)
			}
		}
		return out, nil
	default:
		return nil, newEvalError(ErrTypeError, "filter requires a List or Record, got %s", typeName(coll))
	}
}

func applyPredicate(fnVal, arg Value, ctx *EvalContext) (bool, error) {
	v, err := applyFun(fnVal, []Value{arg}, ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(BoolValue)
	if !ok {
		return false, newEvalError(ErrTypeError, "predicate must return a Bool, got %s", typeName(v))
	}
	return b.Value, nil
}

func evalFold(e BuiltinCall, env *Env, ctx *EvalContext) (Value, error) {
	fnVal, err := Eval(e.Args[0], env, ctx)
	if err != nil {
		return nil, err
	}
	acc, err := Eval(e.Args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	coll, err := Eval(e.Args[2], env, ctx)
	if err != nil {
		return nil, err
	}
	apply2 := func(acc, x Value) (Value, error) {
		fn, ok := fnVal.(FunValue)
		if !ok {
			return nil, newEvalError(ErrTypeError, "fold requires a function, got %s", typeName(fnVal))
		}
		step1, err := Eval(fn.Body, fn.Env.Extend(fn.Param, acc), ctx)
		if err != nil {
			return nil, err
		}
		return applyFun(step1, []Value{x}, ctx)
	}
	switch c := coll.(type) {
	case ListValue:
		for _, elem := range c.Elems {
			acc, err = apply2(acc, elem)
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	case RecordValue:
		// fold over a Record visits values in ascending key order
		// (spec.md §4.4), unlike every other Record built-in here, which
		// preserves insertion order.
		keys := make([]string, 0, c.Fields.Len())
		for pair := c.Fields.Oldest(); pair != nil; pair = pair.Next() {
			keys = append(keys, pair.Key)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, _ := c.Fields.Get(k)
			acc, err = apply2(acc, v)
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	default:
		return nil, newEvalError(ErrTypeError, "fold requires a List or Record, got %s", typeName(coll))
	}
}

func evalPush(e BuiltinCall, env *Env, ctx *EvalContext) (Value, error) {
	targetVal, err := Eval(e.Args[0], env, ctx)
	if err != nil {
		return nil, err
	}
	target, ok := targetVal.(StrValue)
	if !ok {
		return nil, newEvalError(ErrTypeError, "push target must be a Str, got %s", typeName(targetVal))
	}
	val, err := Eval(e.Args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	ctx.Pushes = append(ctx.Pushes, Push{Target: CellID(target.Value), Seq: ctx.seq, Value: val})
	ctx.seq++
	return val, nil
}

func evalRead(e BuiltinCall, ctx *EvalContext) (Value, error) {
	var elems []Value
	for _, entry := range ctx.Mailbox {
		elems = append(elems, entry.Value)
	}
	return ListValue{Elems: elems}, nil
}

func typeName(v Value) string {
	switch v.(type) {
	case IntValue:
		return "Int"
	case BoolValue:
		return "Bool"
	case StrValue:
		return "Str"
	case ListValue:
		return "List"
	case RecordValue:
		return "Record"
	case FunValue:
		return "Fun"
	case UnitValue:
		return "Unit"
	default:
		return "?"
	}
}
