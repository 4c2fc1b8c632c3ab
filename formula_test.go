package xlbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- FormulaBuilder Tests ---

func TestFormulaBuilder_Literals(t *testing.T) {
	f, err := NewFormula("ROUND").Number(3.14159).Int(2).Build()
	require.NoError(t, err)
	assert.Equal(t, "ROUND(3.14159,2)", f.Text())
	assert.Equal(t, "=ROUND(3.14159,2)", f.String())
	assert.Empty(t, f.Refs())
}

func TestFormulaBuilder_TextEscaping(t *testing.T) {
	f, err := NewFormula("CONCAT").Text(`say "hi"`).Text("plain").Build()
	require.NoError(t, err)
	assert.Equal(t, `CONCAT("say ""hi""","plain")`, f.Text())
}

func TestFormulaBuilder_Bool(t *testing.T) {
	f, err := NewFormula("IF").Bool(true).Int(1).Int(0).Build()
	require.NoError(t, err)
	assert.Equal(t, "IF(TRUE,1,0)", f.Text())
}

func TestFormulaBuilder_LowercaseNameNormalized(t *testing.T) {
	f, err := NewFormula("sum").Cell(mustCell(t, "A1")).Build()
	require.NoError(t, err)
	assert.Equal(t, "SUM(A1)", f.Text())
}

func TestFormulaBuilder_CapturesRefs(t *testing.T) {
	rng := mustRange(t, "B2:B9")
	f, err := NewFormula("SUMIF").Range(rng).Text("Food").Range(mustRange(t, "C2:C9")).Build()
	require.NoError(t, err)
	assert.Equal(t, `SUMIF(B2:B9,"Food",C2:C9)`, f.Text())

	refs := f.Refs()
	require.Len(t, refs, 2)
	assert.Equal(t, rng, refs[0])
}

func TestFormulaBuilder_DedupesRefs(t *testing.T) {
	a1 := mustCell(t, "A1")
	f, err := NewFormula("SUM").Cell(a1).Cell(a1).Cell(mustCell(t, "A2")).Build()
	require.NoError(t, err)
	assert.Equal(t, "SUM(A1,A1,A2)", f.Text()) // text keeps both mentions
	assert.Len(t, f.Refs(), 2)                 // capture set does not
}

func TestFormulaBuilder_Nested(t *testing.T) {
	inner := NewFormula("AVERAGE").Range(mustRange(t, "B2:B9"))
	f, err := NewFormula("ROUND").Fn(inner).Int(2).Build()
	require.NoError(t, err)
	assert.Equal(t, "ROUND(AVERAGE(B2:B9),2)", f.Text())
	require.Len(t, f.Refs(), 1)
	assert.Equal(t, "B2:B9", f.Refs()[0].String())
}

func TestFormulaBuilder_NestedFlattensIntoCapture(t *testing.T) {
	inner := NewFormula("SUM").Cell(mustCell(t, "A1")).Cell(mustCell(t, "A2"))
	f, err := NewFormula("IF").Fn(inner).Int(1).Cell(mustCell(t, "A1")).Build()
	require.NoError(t, err)
	assert.Equal(t, "IF(SUM(A1,A2),1,A1)", f.Text())
	assert.Len(t, f.Refs(), 2) // A1 deduped across nesting levels
}

func TestFormulaBuilder_EmptyName(t *testing.T) {
	_, err := NewFormula("").Build()
	assert.ErrorIs(t, err, ErrNoFunction)

	_, err = NewFormula("   ").Build()
	assert.ErrorIs(t, err, ErrNoFunction)
}

func TestFormulaBuilder_MalformedName(t *testing.T) {
	_, err := NewFormula("SUM(").Build()
	assert.ErrorIs(t, err, ErrBuilder)

	_, err = NewFormula("1ST").Build()
	assert.ErrorIs(t, err, ErrBuilder)
}

func TestFormulaBuilder_SpentAfterBuild(t *testing.T) {
	fb := NewFormula("SUM").Cell(mustCell(t, "A1"))
	_, err := fb.Build()
	require.NoError(t, err)

	_, err = fb.Build()
	assert.ErrorIs(t, err, ErrBuilder)

	fb.Cell(mustCell(t, "A2"))
	_, err = fb.Build()
	assert.ErrorIs(t, err, ErrBuilder)
}

func TestFormulaBuilder_ErrorSticks(t *testing.T) {
	fb := NewFormula("").Cell(mustCell(t, "A1")).Int(2)
	_, err := fb.Build()
	assert.ErrorIs(t, err, ErrNoFunction)
}

func TestFormulaBuilder_SelfNesting(t *testing.T) {
	fb := NewFormula("SUM")
	fb.Fn(fb)
	_, err := fb.Build()
	assert.ErrorIs(t, err, ErrBuilder)
}

func TestFormulaBuilder_MutualNesting(t *testing.T) {
	a := NewFormula("SUM")
	b := NewFormula("MAX")
	a.Fn(b)
	b.Fn(a)
	_, err := a.Build()
	assert.ErrorIs(t, err, ErrBuilder)
}

func TestFormulaBuilder_NamedOutsideSession(t *testing.T) {
	_, err := NewFormula("SUM").Named("Spend").Build()
	assert.ErrorIs(t, err, ErrBuilder)
}

func TestFormulaBuilder_NamedBadIdentifier(t *testing.T) {
	_, err := NewFormula("SUM").Named("B2").Build()
	assert.ErrorIs(t, err, ErrBuilder)
}

func TestFormulaBuilder_RefDispatch(t *testing.T) {
	nr := NamedRef{Name: "Spend", Range: mustRange(t, "S!B2:B4")}
	f, err := NewFormula("SUM").
		Ref(mustCell(t, "A1")).
		Ref(mustRange(t, "B1:B3")).
		Ref(nr).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "SUM(A1,B1:B3,Spend)", f.Text())
	require.Len(t, f.Refs(), 3)
	assert.Equal(t, nr, f.Refs()[2]) // geometry carried, not re-resolved
}

func TestFormulaBuilder_RefNil(t *testing.T) {
	_, err := NewFormula("SUM").Ref(nil).Build()
	assert.ErrorIs(t, err, ErrBuilder)
}

// --- Catalog Validation Tests ---

func catalogBuilder(t *testing.T, name string) *FormulaBuilder {
	t.Helper()
	fb := NewFormula(name)
	fb.bind(DefaultCatalog(), nil, false)
	return fb
}

func TestFormulaBuilder_ArityTooFew(t *testing.T) {
	_, err := catalogBuilder(t, "ROUND").Number(1.5).Build()
	assert.ErrorIs(t, err, ErrBuilder)
	assert.Contains(t, err.Error(), "at least 2")
}

func TestFormulaBuilder_ArityTooMany(t *testing.T) {
	_, err := catalogBuilder(t, "NOT").Bool(true).Bool(false).Build()
	assert.ErrorIs(t, err, ErrBuilder)
	assert.Contains(t, err.Error(), "at most 1")
}

func TestFormulaBuilder_KindMismatch(t *testing.T) {
	_, err := catalogBuilder(t, "ROUND").Text("x").Int(2).Build()
	assert.ErrorIs(t, err, ErrBuilder)
	assert.Contains(t, err.Error(), "must be number")
}

func TestFormulaBuilder_RefSatisfiesAnyKind(t *testing.T) {
	f, err := catalogBuilder(t, "ROUND").Cell(mustCell(t, "B2")).Int(2).Build()
	require.NoError(t, err)
	assert.Equal(t, "ROUND(B2,2)", f.Text())
}

func TestFormulaBuilder_UnknownFunctionLenient(t *testing.T) {
	fb := NewFormula("FROBNICATE")
	fb.bind(DefaultCatalog(), nil, false)
	_, err := fb.Cell(mustCell(t, "A1")).Build()
	assert.NoError(t, err)
}

func TestFormulaBuilder_UnknownFunctionStrict(t *testing.T) {
	fb := NewFormula("FROBNICATE")
	fb.bind(DefaultCatalog(), nil, true)
	_, err := fb.Cell(mustCell(t, "A1")).Build()
	assert.ErrorIs(t, err, ErrUnknownFunction)
}

// --- Raw Formula Extraction Tests ---

func namesOf(refs []Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}

func TestExtractFormulaRefs_CellsAndRanges(t *testing.T) {
	refs := extractFormulaRefs("SUM(B2:B9)+C1*2", nil)
	assert.Equal(t, []string{"B2:B9", "C1"}, namesOf(refs))
}

func TestExtractFormulaRefs_RangeCornersNotDoubleCounted(t *testing.T) {
	refs := extractFormulaRefs("SUM(A1:C10)", nil)
	assert.Equal(t, []string{"A1:C10"}, namesOf(refs))
}

func TestExtractFormulaRefs_SheetQualified(t *testing.T) {
	refs := extractFormulaRefs("Data!B2+'My Sheet'!C3", nil)
	assert.Equal(t, []string{"Data!B2", "'My Sheet'!C3"}, namesOf(refs))
}

func TestExtractFormulaRefs_AbsoluteMarkers(t *testing.T) {
	// ranges are matched before cells, so the range comes first
	refs := extractFormulaRefs("$A$1+$B2:B$9", nil)
	require.Len(t, refs, 2)
	assert.Equal(t, "B2:B9", refs[0].String())
	assert.Equal(t, "A1", refs[1].String())
}

func TestExtractFormulaRefs_QuotedStringsIgnored(t *testing.T) {
	refs := extractFormulaRefs(`IF(A1>0,"see B2","see C3:C5")`, nil)
	assert.Equal(t, []string{"A1"}, namesOf(refs))
}

func TestExtractFormulaRefs_FunctionNamesSkipped(t *testing.T) {
	lookup := func(name string) (NamedRef, bool) {
		if name == "SUM" {
			t.Fatalf("function name looked up as identifier")
		}
		return NamedRef{}, false
	}
	refs := extractFormulaRefs("SUM(A1,A2)", lookup)
	assert.Equal(t, []string{"A1", "A2"}, namesOf(refs))
}

func TestExtractFormulaRefs_NamedResolved(t *testing.T) {
	spend := NamedRef{Name: "Spend", Range: mustRange(t, "S!B2:B4")}
	lookup := func(name string) (NamedRef, bool) {
		if name == "Spend" {
			return spend, true
		}
		return NamedRef{}, false
	}
	refs := extractFormulaRefs("SUM(Spend)/COUNT(Spend)", lookup)
	require.Len(t, refs, 1)
	assert.Equal(t, spend, refs[0])
}

func TestExtractFormulaRefs_UnresolvedIdentifierSkipped(t *testing.T) {
	refs := extractFormulaRefs("Mystery+A1", func(string) (NamedRef, bool) { return NamedRef{}, false })
	assert.Equal(t, []string{"A1"}, namesOf(refs))
}

func TestExtractFormulaRefs_IdentifierNotSplit(t *testing.T) {
	// RATE2024 must not leak a phantom ATE2024 cell ref from its tail
	refs := extractFormulaRefs("RATE2024*A1", func(string) (NamedRef, bool) { return NamedRef{}, false })
	assert.Equal(t, []string{"A1"}, namesOf(refs))
}

func TestExtractFormulaRefs_BooleanConstantsSkipped(t *testing.T) {
	called := false
	lookup := func(name string) (NamedRef, bool) {
		if name == "TRUE" || name == "FALSE" {
			called = true
		}
		return NamedRef{}, false
	}
	extractFormulaRefs("IF(TRUE,1,FALSE)", lookup)
	assert.False(t, called)
}

func TestExtractFormulaRefs_Dedupes(t *testing.T) {
	refs := extractFormulaRefs("A1+A1+$A$1", nil)
	assert.Equal(t, []string{"A1"}, namesOf(refs))
}

func TestExtractFormulaRefs_NoRefs(t *testing.T) {
	assert.Empty(t, extractFormulaRefs("1+2*3", nil))
}
