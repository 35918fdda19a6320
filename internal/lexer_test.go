package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Tokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []TokenKind
		wantErr  bool
	}{
		{
			name:     "integers and operators",
			input:    "1 + 2 * 3",
			expected: []TokenKind{TokInt, TokPlus, TokInt, TokStar, TokInt, TokEOF},
		},
		{
			name:     "record merge is not a comment",
			input:    "a // b",
			expected: []TokenKind{TokIdent, TokMerge, TokIdent, TokEOF},
		},
		{
			name:     "line comment consumed to end of line",
			input:    "1 -- this is a comment\n+ 2",
			expected: []TokenKind{TokInt, TokPlus, TokInt, TokEOF},
		},
		{
			name:     "keywords",
			input:    "let in fn true false and or not",
			expected: []TokenKind{TokLet, TokIn, TokFn, TokTrue, TokFalse, TokAnd, TokOr, TokNot, TokEOF},
		},
		{
			name:     "string literal with escapes",
			input:    `"a\nb\t\"c\\"`,
			expected: []TokenKind{TokStr, TokEOF},
		},
		{
			name:     "comparisons",
			input:    "== /= < <= > >=",
			expected: []TokenKind{TokEq, TokNeq, TokLt, TokLe, TokGt, TokGe, TokEOF},
		},
		{
			name:    "unterminated string",
			input:   `"abc`,
			wantErr: true,
		},
		{
			name:    "unknown character",
			input:   "1 $ 2",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, ErrLex)
				return
			}
			assert.NoError(t, err)
			var kinds []TokenKind
			for _, tok := range tokens {
				kinds = append(kinds, tok.Kind)
			}
			assert.Equal(t, tt.expected, kinds)
		})
	}
}

func Test_Tokenize_StringEscapes(t *testing.T) {
	tokens, err := Tokenize(`"a\nb\t\"c\\"`)
	assert.NoError(t, err)
	assert.Equal(t, "a\nb\t\"c\\", tokens[0].Lit)
}

func Test_Tokenize_IdentifierValues(t *testing.T) {
	tokens, err := Tokenize("strength dexterity_mod x1")
	assert.NoError(t, err)
	assert.Equal(t, "strength", tokens[0].Lit)
	assert.Equal(t, "dexterity_mod", tokens[1].Lit)
	assert.Equal(t, "x1", tokens[2].Lit)
}
