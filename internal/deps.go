package internal

import (
	"github.com/samber/lo"
)

// StaticDeps is the result of analyzing one cell's parsed formula: the set
// of cells it may push to, and whether it calls read() at all (spec.md
// §4.3 — a cell only ever reads its own mailbox, so Reads is a bool, not a
// set of CellIDs).
type StaticDeps struct {
	PushesTo []CellID
	Reads    bool
}

// AnalyzeDeps walks expr once, collecting every literal push target and
// noting whether read() is called anywhere. It generalizes the teacher's
// single-purpose CellRefs walk (which collected CellRefExpr nodes) to the
// two static sets spec.md §4.3 requires.
//
// A push whose first argument is not a string literal is rejected outright
// with ErrDynamicPushTarget: static DAG-ability requires every edge to be
// knowable without running the formula.
func AnalyzeDeps(expr Expr) (StaticDeps, error) {
	var pushesTo []CellID
	reads := false

	var walk func(e Expr) error
	walk = func(e Expr) error {
		if e == nil {
			return nil
		}
		switch n := e.(type) {
		case IntLit, BoolLit, StrLit, Var:
			return nil
		case ListLit:
			for _, elem := range n.Elems {
				if err := walk(elem); err != nil {
					return err
				}
			}
			return nil
		case RecordLit:
			for _, f := range n.Fields {
				if err := walk(f.Value); err != nil {
					return err
				}
			}
			return nil
		case Lambda:
			return walk(n.Body)
		case App:
			if err := walk(n.Fn); err != nil {
				return err
			}
			return walk(n.Arg)
		case Let:
			for _, b := range n.Bindings {
				if err := walk(b.Value); err != nil {
					return err
				}
			}
			return walk(n.Body)
		case BinOp:
			if err := walk(n.Left); err != nil {
				return err
			}
			return walk(n.Right)
		case UnOp:
			return walk(n.Operand)
		case Index:
			if err := walk(n.Target); err != nil {
				return err
			}
			return walk(n.Key)
		case FieldAccess:
			return walk(n.Target)
		case RecordMerge:
			if err := walk(n.Left); err != nil {
				return err
			}
			return walk(n.Right)
		case BuiltinCall:
			if n.Name == "push" {
				if len(n.Args) != 2 {
					return newEvalError(ErrArityMismatch, "push requires 2 arguments")
				}
				lit, ok := n.Args[0].(StrLit)
				if !ok {
					return newEvalError(ErrDynamicPushTarget, "push target must be a string literal")
				}
				pushesTo = append(pushesTo, CellID(lit.Value))
			}
			if n.Name == "read" {
				reads = true
			}
			for _, arg := range n.Args {
				if err := walk(arg); err != nil {
					return err
				}
			}
			return nil
		default:
			return nil
		}
	}

	if err := walk(expr); err != nil {
		return StaticDeps{}, err
	}

	return StaticDeps{PushesTo: lo.Uniq(pushesTo), Reads: reads}, nil
}
