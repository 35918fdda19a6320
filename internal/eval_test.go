package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalSrc(t *testing.T, src string) (Value, error) {
	t.Helper()
	expr, err := ParseExpr(src)
	require.NoError(t, err)
	return Eval(expr, nil, NewEvalContext("A", nil))
}

func Test_Eval_Arithmetic(t *testing.T) {
	v, err := evalSrc(t, "1 + 2 * 3")
	require.NoError(t, err)
	assert.Equal(t, IntValue{Value: 7}, v)
}

func Test_Eval_Overflow(t *testing.T) {
	_, err := evalSrc(t, "9223372036854775807 + 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverflowError)
}

func Test_Eval_RecordFieldAccess(t *testing.T) {
	v, err := evalSrc(t, `let stats = { strength: 15, dexterity: 12 } in stats.strength`)
	require.NoError(t, err)
	assert.Equal(t, IntValue{Value: 15}, v)
}

func Test_Eval_RecordMerge_RightBiased(t *testing.T) {
	v, err := evalSrc(t, `{strength:10, dexterity:10} // {strength:12}`)
	require.NoError(t, err)
	rec, ok := v.(RecordValue)
	require.True(t, ok)
	strength, _ := rec.Fields.Get("strength")
	dexterity, _ := rec.Fields.Get("dexterity")
	assert.Equal(t, IntValue{Value: 12}, strength)
	assert.Equal(t, IntValue{Value: 10}, dexterity)
}

func Test_Eval_CurriedLambda(t *testing.T) {
	v, err := evalSrc(t, "let double = (fn(x)->fn(y)->x*y)(2) in double(10)")
	require.NoError(t, err)
	assert.Equal(t, IntValue{Value: 20}, v)
}

func Test_Eval_ListMapFilterFold(t *testing.T) {
	v, err := evalSrc(t, "fold(fn(acc)->fn(x)->acc+x, 0, filter(fn(x)->x > 1, map(fn(x)->x*2, [1,2,3])))")
	require.NoError(t, err)
	assert.Equal(t, IntValue{Value: 12}, v) // map -> [2,4,6]; filter x>1 -> [2,4,6]; fold -> 12
}

func Test_Eval_RecordFoldAscendingKeyOrder(t *testing.T) {
	expr, err := ParseExpr(`fold(fn(acc)->fn(x)->push("OUT", x), 0, {b: 2, a: 1, c: 3})`)
	require.NoError(t, err)
	ctx := NewEvalContext("A", nil)
	_, err = Eval(expr, nil, ctx)
	require.NoError(t, err)
	require.Len(t, ctx.Pushes, 3)
	assert.Equal(t, []Value{IntValue{Value: 1}, IntValue{Value: 2}, IntValue{Value: 3}},
		[]Value{ctx.Pushes[0].Value, ctx.Pushes[1].Value, ctx.Pushes[2].Value})
}

func Test_Eval_StructuralEquality(t *testing.T) {
	v, err := evalSrc(t, "[1, 2] == [1, 2]")
	require.NoError(t, err)
	assert.Equal(t, BoolValue{Value: true}, v)

	v, err = evalSrc(t, "{a: 1} == {a: 1}")
	require.NoError(t, err)
	assert.Equal(t, BoolValue{Value: true}, v)
}

func Test_Eval_UnboundVariable(t *testing.T) {
	_, err := evalSrc(t, "x + 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnboundVariable)
}

func Test_Eval_TypeError(t *testing.T) {
	_, err := evalSrc(t, "1 + true")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeError)
}

func Test_Eval_IndexOutOfRange(t *testing.T) {
	_, err := evalSrc(t, "[1,2,3][5]")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexError)
}

func Test_Eval_Push_ReturnsValueAndBuffersPush(t *testing.T) {
	expr, err := ParseExpr(`push("C", 10)`)
	require.NoError(t, err)
	ctx := NewEvalContext("A", nil)
	v, err := Eval(expr, nil, ctx)
	require.NoError(t, err)
	assert.Equal(t, IntValue{Value: 10}, v)
	require.Len(t, ctx.Pushes, 1)
	assert.Equal(t, CellID("C"), ctx.Pushes[0].Target)
	assert.Equal(t, IntValue{Value: 10}, ctx.Pushes[0].Value)
}

func Test_Eval_Push_SequenceIncrementsInProgramOrder(t *testing.T) {
	expr, err := ParseExpr(`let a = push("C", 2) in push("C", 3)`)
	require.NoError(t, err)
	ctx := NewEvalContext("B", nil)
	_, err = Eval(expr, nil, ctx)
	require.NoError(t, err)
	require.Len(t, ctx.Pushes, 2)
	assert.Equal(t, uint32(0), ctx.Pushes[0].Seq)
	assert.Equal(t, uint32(1), ctx.Pushes[1].Seq)
}

func Test_Eval_Read_ReturnsMailboxList(t *testing.T) {
	expr, err := ParseExpr("read()")
	require.NoError(t, err)
	mailbox := []MailboxEntry{
		{Source: "A", Seq: 0, Value: IntValue{Value: 10}},
		{Source: "B", Seq: 0, Value: StrValue{Value: "Hello"}},
	}
	v, err := Eval(expr, nil, NewEvalContext("C", mailbox))
	require.NoError(t, err)
	assert.Equal(t, ListValue{Elems: []Value{IntValue{Value: 10}, StrValue{Value: "Hello"}}}, v)
}

func Test_Eval_Read_EmptyMailboxReturnsEmptyList(t *testing.T) {
	expr, err := ParseExpr("read()")
	require.NoError(t, err)
	v, err := Eval(expr, nil, NewEvalContext("C", nil))
	require.NoError(t, err)
	assert.Equal(t, ListValue{Elems: nil}, v)
}

func Test_Eval_FunctionsAreNeverEqual(t *testing.T) {
	v, err := evalSrc(t, "(fn(x)->x) == (fn(x)->x)")
	require.NoError(t, err)
	assert.Equal(t, BoolValue{Value: false}, v)
}

func Test_Eval_LetBindingSeesOnlyPriorBindings(t *testing.T) {
	_, err := evalSrc(t, "let a = a in a")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnboundVariable)
}

func Test_AnalyzeDeps_RejectsDynamicPushTarget(t *testing.T) {
	expr, err := ParseExpr(`let t = "C" in push(t, 1)`)
	require.NoError(t, err)
	_, err = AnalyzeDeps(expr)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDynamicPushTarget)
}

func Test_AnalyzeDeps_CollectsLiteralPushTargetsAndReads(t *testing.T) {
	expr, err := ParseExpr(`let a = push("B", 1) in push("C", read())`)
	require.NoError(t, err)
	deps, err := AnalyzeDeps(expr)
	require.NoError(t, err)
	assert.ElementsMatch(t, []CellID{"B", "C"}, deps.PushesTo)
	assert.True(t, deps.Reads)
}

func Test_ToJSONLike_RecordKeysAscending(t *testing.T) {
	rec := NewRecord()
	rec.Fields.Set("b", IntValue{Value: 2})
	rec.Fields.Set("a", IntValue{Value: 1})
	fields, ok := ToJSONLike(rec).([]OrderedField)
	require.True(t, ok)
	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].Key)
	assert.Equal(t, "b", fields[1].Key)
}

func Test_ToJSONLike_FunctionIsPlaceholder(t *testing.T) {
	fn := FunValue{Param: "x", Body: Var{Name: "x"}, Env: nil}
	assert.Equal(t, FunctionPlaceholder, ToJSONLike(fn))
}
