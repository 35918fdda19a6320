package internal

// Expr is the interface implemented by every expression-tree node. The
// marker method mirrors the teacher's IsExpr()-on-every-node pattern,
// itself modeled (per the teacher's own comment) on go/ast.
type Expr interface {
	IsExpr()
}

// IntLit is an integer literal.
type IntLit struct {
	Value int64
}

// BoolLit is a boolean literal.
type BoolLit struct {
	Value bool
}

// StrLit is a string literal.
type StrLit struct {
	Value string
}

// Var is a reference to a lexically bound name.
type Var struct {
	Name string
}

// ListLit is a list literal.
type ListLit struct {
	Elems []Expr
}

// RecordField is one key/value pair of a record literal, in source order.
type RecordField struct {
	Key   string
	Value Expr
}

// RecordLit is a record literal.
type RecordLit struct {
	Fields []RecordField
}

// Lambda is a single-parameter function literal; multi-parameter functions
// are curried nestings of Lambda, per spec.md §4.2.
type Lambda struct {
	Param string
	Body  Expr
}

// App is function application, f(x).
type App struct {
	Fn  Expr
	Arg Expr
}

// Binding is one `name = expr` clause of a Let.
type Binding struct {
	Name  string
	Value Expr
}

// Let evaluates Bindings sequentially (each sees only the previous
// bindings, never itself or later ones) then evaluates Body in the
// resulting environment.
type Let struct {
	Bindings []Binding
	Body     Expr
}

// BinOp is a binary operator application.
type BinOp struct {
	Op    TokenKind
	Left  Expr
	Right Expr
}

// UnOp is a unary operator application (`not` or unary `-`).
type UnOp struct {
	Op      TokenKind
	Operand Expr
}

// Index is `e[k]`.
type Index struct {
	Target Expr
	Key    Expr
}

// FieldAccess is `e.name`, equivalent to `e["name"]`.
type FieldAccess struct {
	Target Expr
	Name   string
}

// RecordMerge is `l // r`, a shallow right-biased record union.
type RecordMerge struct {
	Left  Expr
	Right Expr
}

// BuiltinCall is a call to one of the reserved built-in names: map, filter,
// fold, push, read.
type BuiltinCall struct {
	Name string
	Args []Expr
}

func (IntLit) IsExpr()      {}
func (BoolLit) IsExpr()     {}
func (StrLit) IsExpr()      {}
func (Var) IsExpr()         {}
func (ListLit) IsExpr()     {}
func (RecordLit) IsExpr()   {}
func (Lambda) IsExpr()      {}
func (App) IsExpr()         {}
func (Let) IsExpr()         {}
func (BinOp) IsExpr()       {}
func (UnOp) IsExpr()        {}
func (Index) IsExpr()       {}
func (FieldAccess) IsExpr() {}
func (RecordMerge) IsExpr() {}
func (BuiltinCall) IsExpr() {}

// builtinNames is the set of reserved built-in call targets recognized by
// the parser; any other bare identifier followed by `(...)` is parsed as
// ordinary application (identifiers aren't special-cased otherwise).
var builtinNames = map[string]int{
	"map":    2,
	"filter": 2,
	"fold":   3,
	"push":   2,
	"read":   0,
}
