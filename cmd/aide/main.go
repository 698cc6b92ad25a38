// Command aide is a personal assistant for expenses, notes, meetings and
// health & diet, served over HTTP, MCP or the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCMD().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCMD() *cobra.Command {
	var root = &cobra.Command{
		Use:           "aide",
		Short:         "Personal assistant for expenses, notes, meetings and health",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	var cfgPath string
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.json)")

	root.AddCommand(serveCMD(&cfgPath), askCMD(&cfgPath), mcpCMD(&cfgPath), migrateCMD(&cfgPath), reconcileCMD(&cfgPath))
	return root
}
