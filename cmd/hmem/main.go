// Command hmem is the thin transport shim over the core engine: a cobra
// CLI plus a line-delimited JSON stdio server for embedding in an agent
// front-end (spec.md §6 / §7). Structured as one cobra.Command per
// operation, mirrored on the teacher's cmd/bd layout of one file per
// subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hmem",
	Short: "Persistent hierarchical memory store for long-lived agents",
	Long: `hmem is a persistent hierarchical memory store for long-lived AI agents.
Agents write short memories over time and re-read them across sessions;
reads are lazy and bulk reads run a selection algorithm that decides what
to expand, hide, or promote.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(writeCmd, updateCmd, appendCmd, readCmd, statsCmd, exportCmd, importCmd, auditCmd, serveCmd)
}
