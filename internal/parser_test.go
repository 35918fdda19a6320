package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseExpr(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Expr
	}{
		{
			name:     "int literal",
			input:    "42",
			expected: IntLit{Value: 42},
		},
		{
			name:     "unary minus folds into a literal",
			input:    "-5",
			expected: IntLit{Value: -5},
		},
		{
			name:  "precedence: * binds tighter than +",
			input: "1 + 2 * 3",
			expected: BinOp{Op: TokPlus, Left: IntLit{Value: 1}, Right: BinOp{
				Op: TokStar, Left: IntLit{Value: 2}, Right: IntLit{Value: 3},
			}},
		},
		{
			name:  "merge binds looser than +",
			input: "a // b + c",
			expected: RecordMerge{
				Left: Var{Name: "a"},
				Right: BinOp{Op: TokPlus, Left: Var{Name: "b"}, Right: Var{Name: "c"}},
			},
		},
		{
			name:  "comparison binds looser than merge",
			input: "a // b == c // d",
			expected: BinOp{
				Op:   TokEq,
				Left: RecordMerge{Left: Var{Name: "a"}, Right: Var{Name: "b"}},
				Right: RecordMerge{
					Left:  Var{Name: "c"},
					Right: Var{Name: "d"},
				},
			},
		},
		{
			name:  "not binds looser than comparison",
			input: "not a == b",
			expected: UnOp{Op: TokNot, Operand: BinOp{
				Op: TokEq, Left: Var{Name: "a"}, Right: Var{Name: "b"},
			}},
		},
		{
			name:  "and binds tighter than or",
			input: "a or b and c",
			expected: BinOp{
				Op:   TokOr,
				Left: Var{Name: "a"},
				Right: BinOp{
					Op: TokAnd, Left: Var{Name: "b"}, Right: Var{Name: "c"},
				},
			},
		},
		{
			name:  "let with multiple bindings",
			input: "let a = 1; b = 2 in a + b",
			expected: Let{
				Bindings: []Binding{{Name: "a", Value: IntLit{Value: 1}}, {Name: "b", Value: IntLit{Value: 2}}},
				Body:     BinOp{Op: TokPlus, Left: Var{Name: "a"}, Right: Var{Name: "b"}},
			},
		},
		{
			name:  "curried lambda application",
			input: "(fn(x)->fn(y)->x*y)(2)(3)",
			expected: App{
				Fn: App{
					Fn:  Lambda{Param: "x", Body: Lambda{Param: "y", Body: BinOp{Op: TokStar, Left: Var{Name: "x"}, Right: Var{Name: "y"}}}},
					Arg: IntLit{Value: 2},
				},
				Arg: IntLit{Value: 3},
			},
		},
		{
			name:  "field access then index, left-associative",
			input: "a.b[0]",
			expected: Index{
				Target: FieldAccess{Target: Var{Name: "a"}, Name: "b"},
				Key:    IntLit{Value: 0},
			},
		},
		{
			name:  "record literal",
			input: `{strength: 15, "dexterity": 12}`,
			expected: RecordLit{Fields: []RecordField{
				{Key: "strength", Value: IntLit{Value: 15}},
				{Key: "dexterity", Value: IntLit{Value: 12}},
			}},
		},
		{
			name:  "list literal",
			input: "[1, 2, 3]",
			expected: ListLit{Elems: []Expr{
				IntLit{Value: 1}, IntLit{Value: 2}, IntLit{Value: 3},
			}},
		},
		{
			name:  "builtin call",
			input: `push("C", 10)`,
			expected: BuiltinCall{Name: "push", Args: []Expr{
				StrLit{Value: "C"}, IntLit{Value: 10},
			}},
		},
		{
			name:     "read takes no arguments",
			input:    "read()",
			expected: BuiltinCall{Name: "read", Args: nil},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpr(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func Test_ParseExpr_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "trailing tokens", input: "1 2"},
		{name: "unclosed paren", input: "(1 + 2"},
		{name: "missing in", input: "let a = 1"},
		{name: "wrong builtin arity", input: "read(1)"},
		{name: "empty input", input: ""},
		{name: "integer literal overflows int64", input: "99999999999999999999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExpr(tt.input)
			assert.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}
