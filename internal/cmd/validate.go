package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javajack/xlbuild"
	"github.com/javajack/xlbuild/template"
)

var (
	validateStrictRanges    bool
	validateStrictFunctions bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <template.yaml>...",
	Short: "Statically check templates without data",
	Long: `Check template files without rendering them: expression syntax, sheet
naming rules, named range references, repeat declarations. Errors mean
the template cannot render; warnings render but rarely mean what the
author intended.

Examples:
  xlbuild validate budget.yaml
  xlbuild validate templates/*.yaml --strict-ranges`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateStrictRanges, "strict-ranges", false, "reject single-cell named ranges")
	validateCmd.Flags().BoolVar(&validateStrictFunctions, "strict-functions", false, "reject functions absent from the default catalog")
}

func runValidate(cmd *cobra.Command, args []string) error {
	var sessOpts []xlbuild.Option
	if validateStrictRanges {
		sessOpts = append(sessOpts, xlbuild.WithStrictRanges(true))
	}
	if validateStrictFunctions {
		sessOpts = append(sessOpts, xlbuild.WithStrictFunctions(true))
	}
	var opts []template.Option
	if len(sessOpts) > 0 {
		opts = append(opts, template.WithSessionOptions(sessOpts...))
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		issues, err := template.ValidateFile(path, opts...)
		if err != nil {
			return err
		}
		switch {
		case len(issues) == 0:
			fmt.Fprintf(out, "%s %s\n", passStyle.Render(iconPass), path)
		case template.HasErrors(issues):
			failed++
			fmt.Fprintf(out, "%s %s\n", failStyle.Render(iconFail), boldStyle.Render(path))
		default:
			fmt.Fprintf(out, "%s %s\n", warnStyle.Render(iconWarn), boldStyle.Render(path))
		}
		for _, issue := range issues {
			fmt.Fprintf(out, "  %s\n", renderIssue(issue))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed validation", failed, len(args))
	}
	return nil
}
