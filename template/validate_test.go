package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/javajack/xlbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorMessages(issues []Issue) []string {
	var msgs []string
	for _, i := range issues {
		if i.Severity == SeverityError {
			msgs = append(msgs, i.Message)
		}
	}
	return msgs
}

// --- Validate Tests ---

func TestValidate_CleanTemplate(t *testing.T) {
	tpl := loadTemplate(t, budgetTemplate)
	issues := Validate(tpl)
	assert.Empty(t, issues)
	assert.False(t, HasErrors(issues))
}

func TestValidate_NilTemplate(t *testing.T) {
	issues := Validate(nil)
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Equal(t, "template", issues[0].Location)
}

func TestValidate_NoSheets(t *testing.T) {
	issues := Validate(&Template{})
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "no sheets")
}

func TestValidate_MissingSheetName(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - rows:
      - cells:
          - value: x
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Equal(t, "sheets[0]", issues[0].Location)
	assert.Contains(t, issues[0].Message, "no name")
}

func TestValidate_DuplicateSheetNames(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - cells:
          - value: x
  - name: S
    rows:
      - cells:
          - value: y
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Equal(t, "sheets[1]", issues[0].Location)
	assert.Contains(t, issues[0].Message, `duplicate sheet name "S"`)
	assert.Contains(t, issues[0].Message, "sheets[0]")
}

func TestValidate_ForbiddenSheetName(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: Bad/Name
    rows:
      - cells:
          - value: x
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "forbidden character")
}

func TestValidate_ExpressionSheetNameSyntax(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: Report ${1 +}
    rows:
      - cells:
          - value: x
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Equal(t, "sheets[0].name", issues[0].Location)
	assert.Contains(t, issues[0].Message, "invalid expression")
}

func TestValidate_ComputedSheetNamesDoNotCollide(t *testing.T) {
	// Two expression names may render to distinct values; only render can
	// tell, so validation must not flag them.
	tpl := loadTemplate(t, `
sheets:
  - name: ${a}
    rows:
      - cells:
          - value: x
  - name: ${b}
    rows:
      - cells:
          - value: y
`)
	assert.Empty(t, Validate(tpl))
}

func TestValidate_BadNamedRange(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    named_ranges:
      - name: Spend
        range: nonsense
    rows:
      - cells:
          - value: x
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Equal(t, "sheets[0].named_ranges[0]", issues[0].Location)
	assert.Contains(t, issues[0].Message, "nonsense")
}

func TestValidate_BadRangeName(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    named_ranges:
      - name: 2bad
        range: B2:B4
    rows:
      - cells:
          - value: x
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "2bad")
}

func TestValidate_StrictRangesFlagSingleCell(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    named_ranges:
      - name: One
        range: B2:B2
    rows:
      - cells:
          - value: x
`)
	assert.Empty(t, Validate(tpl))

	issues := Validate(tpl, WithSessionOptions(xlbuild.WithStrictRanges(true)))
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "single cell")
}

func TestValidate_NoRows(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows: []
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "no rows")
}

func TestValidate_RepeatMissingItems(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - repeat:
          var: e
        cells:
          - value: ${e}
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Equal(t, "sheets[0].rows[0].repeat", issues[0].Location)
	assert.Contains(t, issues[0].Message, "missing items")
}

func TestValidate_RepeatMissingVar(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - repeat:
          items: entries
        cells:
          - value: x
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "missing var")
}

func TestValidate_RepeatBadIdentifiers(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - repeat:
          items: entries
          var: 2x
          index: i-j
        cells:
          - value: x
`)
	issues := Validate(tpl)
	require.Len(t, issues, 2)
	assert.Contains(t, issues[0].Message, `var "2x"`)
	assert.Contains(t, issues[1].Message, `index "i-j"`)
}

func TestValidate_RepeatBadWhere(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - repeat:
          items: entries
          var: e
          where: "e.Cost >"
        cells:
          - value: x
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "invalid where expression")
}

func TestValidate_BadCellExpression(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - cells:
          - value: ${1 +}
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Equal(t, "sheets[0].rows[0].cells[0].value", issues[0].Location)
	assert.Contains(t, issues[0].Message, "invalid expression")
}

func TestValidate_BadFormulaExpression(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - cells:
          - formula: SUM(B2:B${last +})
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Equal(t, "sheets[0].rows[0].cells[0].formula", issues[0].Location)
}

func TestValidate_ValueAndFormulaConflict(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - cells:
          - value: x
            formula: SUM(A1:A2)
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "both value and formula")
}

func TestValidate_NegativeIndexes(t *testing.T) {
	col := -1
	tpl := &Template{
		Sheets: []SheetTemplate{{
			Name:    "S",
			Columns: []ColumnTemplate{{Col: -2, Width: -3}},
			Rows: []RowTemplate{{
				Cells: []CellTemplate{{Col: &col, Value: "x"}},
			}},
		}},
	}
	issues := Validate(tpl)
	msgs := errorMessages(issues)
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0], "negative column index -2")
	assert.Contains(t, msgs[1], "negative width")
	assert.Contains(t, msgs[2], "negative column index -1")
}

func TestValidate_UnterminatedExpressionWarns(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - cells:
          - value: Total ${sum
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "unterminated")
	assert.False(t, HasErrors(issues))
}

func TestValidate_CustomNotation(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - cells:
          - value: "[[1 +]]"
`)
	assert.Empty(t, Validate(tpl)) // default notation sees no expressions

	issues := Validate(tpl, WithNotation("[[", "]]"))
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "invalid expression")
}

func TestIssue_String(t *testing.T) {
	i := Issue{Severity: SeverityError, Location: "sheets[0].rows[2]", Message: "sheet has no rows"}
	assert.Equal(t, "[ERROR] sheets[0].rows[2]: sheet has no rows", i.String())

	w := Issue{Severity: SeverityWarning, Location: "sheets[0]", Message: "m"}
	assert.Equal(t, "[WARN] sheets[0]: m", w.String())
}

func TestHasErrors(t *testing.T) {
	assert.False(t, HasErrors(nil))
	assert.False(t, HasErrors([]Issue{{Severity: SeverityWarning}}))
	assert.True(t, HasErrors([]Issue{{Severity: SeverityWarning}, {Severity: SeverityError}}))
}

func TestValidateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clean.yaml")
	require.NoError(t, os.WriteFile(path, []byte(budgetTemplate), 0o644))

	issues, err := ValidateFile(path)
	require.NoError(t, err)
	assert.Empty(t, issues)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(":\tnot yaml"), 0o644))
	_, err = ValidateFile(bad)
	assert.Error(t, err)
}

func TestValidate_BadWhenExpression(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - when: "count >"
        cells:
          - value: x
`)
	issues := Validate(tpl)
	require.Len(t, issues, 1)
	assert.Equal(t, "sheets[0].rows[0].when", issues[0].Location)
	assert.Contains(t, issues[0].Message, "invalid when expression")
}

func TestValidate_CleanWhenExpression(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - when: detailed && count > 3
        cells:
          - value: x
`)
	assert.Empty(t, Validate(tpl))
}
