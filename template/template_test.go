package template

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/javajack/xlbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const budgetTemplate = `
title: Budget ${month}
author: finance
sheets:
  - name: Budget
    columns:
      - col: 0
        width: 20
      - col: 1
        width: 14
        style: currency
    named_ranges:
      - name: Spend
        range: B2:B3
    rows:
      - style: header
        cells:
          - value: Item
          - value: Cost
      - repeat:
          items: entries
          var: e
          index: i
        cells:
          - value: ${e.Item}
          - value: ${e.Cost}
      - cells:
          - value: Total
            style: total
          - formula: SUM(Spend)
            style: total
`

func budgetData() map[string]any {
	return map[string]any{
		"month": "May",
		"entries": []map[string]any{
			{"Item": "Rent", "Cost": 1200.0},
			{"Item": "Food", "Cost": 350.5},
		},
	}
}

func loadTemplate(t *testing.T, text string) *Template {
	t.Helper()
	tpl, err := Load(strings.NewReader(text))
	require.NoError(t, err)
	return tpl
}

// --- Load Tests ---

func TestLoad_Budget(t *testing.T) {
	tpl := loadTemplate(t, budgetTemplate)
	assert.Equal(t, "Budget ${month}", tpl.Title)
	require.Len(t, tpl.Sheets, 1)
	assert.Equal(t, "Budget", tpl.Sheets[0].Name)
	require.Len(t, tpl.Sheets[0].Rows, 3)
	require.NotNil(t, tpl.Sheets[0].Rows[1].Repeat)
	assert.Equal(t, "entries", tpl.Sheets[0].Rows[1].Repeat.Items)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("sheets:\n  - name: S\n    colums: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colums")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.yaml")
	require.NoError(t, os.WriteFile(path, []byte(budgetTemplate), 0o644))

	tpl, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, tpl.Sheets, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// --- Render Tests ---

func TestRender_Budget(t *testing.T) {
	tpl := loadTemplate(t, budgetTemplate)

	wb, err := Render(tpl, budgetData())
	require.NoError(t, err)

	assert.Equal(t, "Budget May", wb.Props.Title)
	assert.Equal(t, "finance", wb.Props.Author)

	sh, ok := wb.Sheet("Budget")
	require.True(t, ok)
	require.Len(t, sh.Rows, 4) // header + 2 entries + total

	assert.Equal(t, "Item", sh.Rows[0].Cells[0].Value)
	assert.Equal(t, "header", sh.Rows[0].Style)

	assert.Equal(t, "Rent", sh.Rows[1].Cells[0].Value)
	assert.Equal(t, 1200.0, sh.Rows[1].Cells[1].Value)
	assert.Equal(t, xlbuild.CellNumber, sh.Rows[1].Cells[1].Type)
	assert.Equal(t, "Food", sh.Rows[2].Cells[0].Value)
	assert.Equal(t, 350.5, sh.Rows[2].Cells[1].Value)

	total := sh.Rows[3].Cells[1]
	assert.Equal(t, xlbuild.CellFormula, total.Type)
	assert.Equal(t, "SUM(Spend)", total.Formula)
	assert.Equal(t, "total", total.Style)

	require.Len(t, sh.Names, 1)
	assert.Equal(t, "Spend", sh.Names[0].Name)
	assert.Equal(t, "Budget!B2:B3", sh.Names[0].Range.String())

	require.Len(t, sh.Columns, 2)
	assert.Equal(t, 20.0, sh.Columns[0].Width)
	assert.Equal(t, "currency", sh.Columns[1].Style)
}

func TestRender_EquivalentToDirectSession(t *testing.T) {
	tpl := loadTemplate(t, budgetTemplate)
	rendered, err := Render(tpl, budgetData())
	require.NoError(t, err)

	s := xlbuild.NewSession()
	require.NoError(t, s.AddSheet("Budget"))
	require.NoError(t, s.AddNamedRange("Spend", "B2:B3"))
	require.NoError(t, s.AddRow())
	require.NoError(t, s.SetCell(0, "Item"))
	require.NoError(t, s.SetCell(1, "Cost"))
	require.NoError(t, s.AddRow())
	require.NoError(t, s.SetCell(0, "Rent"))
	require.NoError(t, s.SetCell(1, 1200.0))
	require.NoError(t, s.AddRow())
	require.NoError(t, s.SetCell(0, "Food"))
	require.NoError(t, s.SetCell(1, 350.5))
	require.NoError(t, s.AddRow())
	require.NoError(t, s.SetCell(0, "Total"))
	require.NoError(t, s.SetCell(1, "=SUM(Spend)"))
	direct, err := s.Build()
	require.NoError(t, err)

	rSheet, _ := rendered.Sheet("Budget")
	dSheet, _ := direct.Sheet("Budget")
	require.Len(t, rSheet.Rows, len(dSheet.Rows))
	for ri := range dSheet.Rows {
		require.Len(t, rSheet.Rows[ri].Cells, len(dSheet.Rows[ri].Cells))
		for ci := range dSheet.Rows[ri].Cells {
			r, d := rSheet.Rows[ri].Cells[ci], dSheet.Rows[ri].Cells[ci]
			assert.Equal(t, d.Type, r.Type, "row %d cell %d", ri, ci)
			assert.Equal(t, d.Value, r.Value, "row %d cell %d", ri, ci)
			assert.Equal(t, d.Formula, r.Formula, "row %d cell %d", ri, ci)
		}
	}
}

func TestRender_MixedContentIsString(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - cells:
          - value: "Month: ${month}"
          - value: ${count}
`)
	wb, err := Render(tpl, map[string]any{"month": "May", "count": 42})
	require.NoError(t, err)

	row := wb.Sheets[0].Rows[0]
	assert.Equal(t, xlbuild.CellString, row.Cells[0].Type)
	assert.Equal(t, "Month: May", row.Cells[0].Value)
	assert.Equal(t, xlbuild.CellNumber, row.Cells[1].Type)
	assert.Equal(t, 42.0, row.Cells[1].Value)
}

func TestRender_SheetNameFromData(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: Report ${month}
    rows:
      - cells:
          - value: x
`)
	wb, err := Render(tpl, map[string]any{"month": "May"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Report May"}, wb.SheetNames())
}

func TestRender_SafeSheetNames(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: Q${q}
    rows:
      - cells:
          - value: x
`)
	data := map[string]any{"q": "1/2"}

	_, err := Render(tpl, data)
	require.Error(t, err) // "/" is forbidden in sheet names

	wb, err := Render(tpl, data, WithSafeSheetNames(true))
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1_2"}, wb.SheetNames())
}

func TestRender_RepeatWhereAndOrderBy(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - repeat:
          items: nums
          var: n
          where: n % 2 == 0
          order_by: n DESC
        cells:
          - value: ${n}
`)
	wb, err := Render(tpl, map[string]any{"nums": []int{3, 10, 7, 4, 8}})
	require.NoError(t, err)

	sh := wb.Sheets[0]
	require.Len(t, sh.Rows, 3)
	assert.Equal(t, 10.0, sh.Rows[0].Cells[0].Value)
	assert.Equal(t, 8.0, sh.Rows[1].Cells[0].Value)
	assert.Equal(t, 4.0, sh.Rows[2].Cells[0].Value)
}

func TestRender_RepeatOrderByField(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - repeat:
          items: entries
          var: e
          order_by: e.Cost DESC
        cells:
          - value: ${e.Item}
`)
	wb, err := Render(tpl, budgetData())
	require.NoError(t, err)
	sh := wb.Sheets[0]
	assert.Equal(t, "Rent", sh.Rows[0].Cells[0].Value)
	assert.Equal(t, "Food", sh.Rows[1].Cells[0].Value)
}

func TestRender_RepeatIndexVariable(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - repeat:
          items: entries
          var: e
          index: i
        cells:
          - value: ${i + 1}
          - value: ${e.Item}
`)
	wb, err := Render(tpl, budgetData())
	require.NoError(t, err)
	sh := wb.Sheets[0]
	assert.Equal(t, 1.0, sh.Rows[0].Cells[0].Value)
	assert.Equal(t, 2.0, sh.Rows[1].Cells[0].Value)
}

func TestRender_RepeatItemsNotACollection(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - repeat:
          items: month
          var: m
        cells:
          - value: ${m}
`)
	_, err := Render(tpl, map[string]any{"month": "May"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot iterate")
}

func TestRender_EmptyRepeatLeavesSheetEmpty(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - repeat:
          items: entries
          var: e
        cells:
          - value: ${e.Item}
`)
	_, err := Render(tpl, map[string]any{"entries": []any{}})
	assert.ErrorIs(t, err, xlbuild.ErrEmptySheet)
}

func TestRender_CycleFailsWithLocation(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - cells:
          - formula: A1+1
`)
	_, err := Render(tpl, nil)
	require.ErrorIs(t, err, xlbuild.ErrCircularRef)
	assert.Contains(t, err.Error(), `sheet "S" row 1`)
}

func TestRender_ValueAndFormulaConflict(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - cells:
          - value: x
            formula: SUM(A1:A2)
`)
	_, err := Render(tpl, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both value and formula")
}

func TestRender_ExplicitColumnPins(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - cells:
          - value: a
          - col: 4
            value: e
          - value: f
`)
	wb, err := Render(tpl, nil)
	require.NoError(t, err)
	row := wb.Sheets[0].Rows[0]
	require.Len(t, row.Cells, 3)
	assert.Equal(t, 0, row.Cells[0].Ref.Col)
	assert.Equal(t, 4, row.Cells[1].Ref.Col)
	assert.Equal(t, 5, row.Cells[2].Ref.Col)
}

func TestRender_CustomNotation(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - cells:
          - value: "[[month]]"
`)
	wb, err := Render(tpl, map[string]any{"month": "May"}, WithNotation("[[", "]]"))
	require.NoError(t, err)
	assert.Equal(t, "May", wb.Sheets[0].Rows[0].Cells[0].Value)
}

func TestRender_TemplatePropertiesWin(t *testing.T) {
	tpl := loadTemplate(t, `
title: From Template
sheets:
  - name: S
    rows:
      - cells:
          - value: x
`)
	wb, err := Render(tpl, nil, WithSessionOptions(xlbuild.WithTitle("From Options")))
	require.NoError(t, err)
	assert.Equal(t, "From Template", wb.Props.Title)
}

func TestRender_StrictRangesFlowThrough(t *testing.T) {
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
	_, err := Render(tpl, nil, WithSessionOptions(xlbuild.WithStrictRanges(true)))
	assert.ErrorIs(t, err, xlbuild.ErrInvalidRange)

	_, err = Render(tpl, nil)
	assert.NoError(t, err)
}

func TestRenderer_ReusableAcrossData(t *testing.T) {
	tpl := loadTemplate(t, budgetTemplate)
	r := NewRenderer()

	first, err := r.Render(tpl, budgetData())
	require.NoError(t, err)

	second, err := r.Render(tpl, map[string]any{
		"month": "June",
		"entries": []map[string]any{
			{"Item": "Rent", "Cost": 1250.0},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Budget May", first.Props.Title)
	assert.Equal(t, "Budget June", second.Props.Title)
	sh, _ := second.Sheet("Budget")
	assert.Len(t, sh.Rows, 3)
}

func TestRender_NilTemplate(t *testing.T) {
	_, err := Render(nil, nil)
	assert.Error(t, err)
}

// --- Conditional Row Tests ---

func TestRender_WhenSkipsRow(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: Report
    rows:
      - cells:
          - value: always
      - when: detailed
        cells:
          - value: detail
`)

	wb, err := Render(tpl, map[string]any{"detailed": false})
	require.NoError(t, err)
	sh, _ := wb.Sheet("Report")
	require.Len(t, sh.Rows, 1)
	assert.Equal(t, "always", sh.Rows[0].Cells[0].Value)

	wb, err = Render(tpl, map[string]any{"detailed": true})
	require.NoError(t, err)
	sh, _ = wb.Sheet("Report")
	require.Len(t, sh.Rows, 2)
	assert.Equal(t, "detail", sh.Rows[1].Cells[0].Value)
}

func TestRender_WhenComparison(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: Report
    rows:
      - cells:
          - value: head
      - when: count > 3
        cells:
          - value: many
`)

	wb, err := Render(tpl, map[string]any{"count": 10})
	require.NoError(t, err)
	sh, _ := wb.Sheet("Report")
	assert.Len(t, sh.Rows, 2)

	wb, err = Render(tpl, map[string]any{"count": 2})
	require.NoError(t, err)
	sh, _ = wb.Sheet("Report")
	assert.Len(t, sh.Rows, 1)
}

func TestRender_WhenGatesRepeat(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: Report
    rows:
      - cells:
          - value: head
      - when: detailed
        repeat:
          items: entries
          var: e
        cells:
          - value: ${e}
`)
	data := map[string]any{"detailed": false, "entries": []int{1, 2, 3}}

	wb, err := Render(tpl, data)
	require.NoError(t, err)
	sh, _ := wb.Sheet("Report")
	assert.Len(t, sh.Rows, 1)
}

func TestRender_WhenNonBoolean(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: Report
    rows:
      - when: month
        cells:
          - value: x
`)

	_, err := Render(tpl, map[string]any{"month": "May"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Report" row 1`)
	assert.Contains(t, err.Error(), "expected bool")
}

// --- Hyperlink Tests ---

func TestRender_HyperlinkBuiltin(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: Links
    rows:
      - cells:
          - value: ${hyperlink(docURL, "Spec")}
`)

	wb, err := Render(tpl, map[string]any{"docURL": "https://example.com/spec"})
	require.NoError(t, err)

	sh, _ := wb.Sheet("Links")
	cell := sh.Rows[0].Cells[0]
	assert.Equal(t, xlbuild.CellString, cell.Type)
	link, ok := cell.Value.(xlbuild.Hyperlink)
	require.True(t, ok, "cell value is %T", cell.Value)
	assert.Equal(t, "https://example.com/spec", link.URL)
	assert.Equal(t, "Spec", link.Display)
}

func TestRender_HyperlinkInMixedContent(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: Links
    rows:
      - cells:
          - value: 'see ${hyperlink("https://example.com", "the docs")}'
`)

	wb, err := Render(tpl, nil)
	require.NoError(t, err)

	sh, _ := wb.Sheet("Links")
	assert.Equal(t, "see the docs", sh.Rows[0].Cells[0].Value)
}

func TestRender_DataShadowsBuiltin(t *testing.T) {
	tpl := loadTemplate(t, `
sheets:
  - name: S
    rows:
      - cells:
          - value: ${hyperlink}
`)

	wb, err := Render(tpl, map[string]any{"hyperlink": "just a value"})
	require.NoError(t, err)
	sh, _ := wb.Sheet("S")
	assert.Equal(t, "just a value", sh.Rows[0].Cells[0].Value)
}
