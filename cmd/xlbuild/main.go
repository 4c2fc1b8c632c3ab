// xlbuild is the command line front end for rendering workbook templates
// and importing bank CSV exports into xlsx files.
package main

import (
	"os"

	"github.com/javajack/xlbuild/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
