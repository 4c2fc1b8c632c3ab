package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javajack/xlbuild"
	"github.com/javajack/xlbuild/bankcsv"
)

var (
	importProfilePath string
	importOutPath     string
	importSheetNames  []string
	importRecalc      bool
)

var importCmd = &cobra.Command{
	Use:   "import <export.csv>...",
	Short: "Import bank CSV exports into an xlsx workbook",
	Long: `Import one or more CSV exports, one sheet per file.

A format profile declares the bank's delimiter, preamble length, column
mapping, date layout and decimal notation. Without a profile the importer
reads plain comma-separated files with a header row and auto-detected
value types.

Examples:
  xlbuild import giro-2024.csv
  xlbuild import --profile dkb.toml january.csv february.csv -o q1.xlsx
  xlbuild import --profile giro.toml export.csv --sheet January`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importProfilePath, "profile", "p", "", "TOML format profile")
	importCmd.Flags().StringVarP(&importOutPath, "out", "o", "", "output file (default: first input with .xlsx)")
	importCmd.Flags().StringArrayVar(&importSheetNames, "sheet", nil, "sheet name per input (default: from file names)")
	importCmd.Flags().BoolVar(&importRecalc, "recalc", false, "mark the workbook for full recalculation on open")
}

func runImport(cmd *cobra.Command, args []string) error {
	profile := bankcsv.DefaultProfile()
	if importProfilePath != "" {
		p, err := bankcsv.LoadProfile(importProfilePath)
		if err != nil {
			return err
		}
		profile = p
	}
	importer, err := bankcsv.NewImporter(profile)
	if err != nil {
		return err
	}

	sess := xlbuild.NewSession()
	out := cmd.OutOrStdout()
	for i, path := range args {
		sheet := ""
		if i < len(importSheetNames) {
			sheet = importSheetNames[i]
		}
		sum, err := importer.ImportFile(path, sess, sheet)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s %s\n",
			passStyle.Render(iconPass), path,
			mutedStyle.Render(fmt.Sprintf("(%d rows into %s)", sum.Rows, sum.Sheet)))
	}

	wb, err := sess.Build()
	if err != nil {
		return err
	}

	outPath := importOutPath
	if outPath == "" {
		outPath = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".xlsx"
	}
	if err := writeWorkbook(wb, outPath, importRecalc); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s wrote %s %s\n",
		passStyle.Render(iconPass), boldStyle.Render(outPath),
		mutedStyle.Render(fmt.Sprintf("(%d sheets)", len(wb.Sheets))))
	return nil
}
