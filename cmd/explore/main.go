// Command explore builds concept exploration graphs from the catalogue
// without a browser.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "explore",
		Short:         "Explore related concepts in the Wellcome Collection catalogue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGraphCommand())
	return root
}
