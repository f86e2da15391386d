// Package main provides the CLI entry point for the lip-sync host.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/normanking/cortexlipsync/internal/segment"
	"github.com/normanking/cortexlipsync/internal/weights"
)

// Version information (set at build time)
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lipsync",
		Short: "Real-time lip-sync for 3D avatars",
		Long: `Drives avatar mouth blend shapes from a sentence and its word end times.

Payloads take the form "<sentence>###<t1,t2,...>" where each t is the end time
of the matching word in seconds.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd(), newSegmentCmd(), newTableCmd())
	return rootCmd
}

// segment command - show how a payload is split into timed visemes
func newSegmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "segment <payload>",
		Short: "Print the timed segments for a speak payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := segment.FromPayload(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, s := range u {
				fmt.Fprintf(out, "%3d  %-4s %8.2f ms\n", i, s.Symbol, s.DurationMs)
			}
			fmt.Fprintf(out, "total %.2f ms, %d segments\n", u.TotalMs(), len(u))
			return nil
		},
	}
}

// table command - validate a weight table and list its symbols
func newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table [path]",
		Short: "Validate a weight table (built-in table when no path is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			table, err := loadTable(path)
			if err != nil {
				return err
			}

			verbose, _ := cmd.Flags().GetBool("verbose")
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d blend shapes, %d symbols\n", table.Len(), len(table.Symbols()))
			for _, sym := range table.Symbols() {
				if !verbose {
					fmt.Fprintln(out, sym)
					continue
				}
				vec, _ := table.Get(sym)
				fmt.Fprintf(out, "%s:", sym)
				for _, w := range vec {
					if w.Weight != 0 {
						fmt.Fprintf(out, " %s=%g", w.Name, w.Weight)
					}
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().BoolP("verbose", "v", false, "Print the non-zero weights of every symbol")
	return cmd
}

func loadTable(path string) (*weights.Table, error) {
	if path == "" {
		return weights.Default()
	}
	return weights.LoadFile(path)
}
