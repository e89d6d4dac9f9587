package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jarvis-tasks/jarvis/internal/config"
	tasksync "github.com/jarvis-tasks/jarvis/internal/sync"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the whole board as JSONL",
	Long: `Reads the configured store directly and writes the same JSONL snapshot the
sync scheduler uploads: a header line, then projects, then tasks.`,
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		var w io.Writer = stdout
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			defer f.Close()
			w = f
		}

		if err := tasksync.ExportJSONL(cmd.Context(), s, w); err != nil {
			return fmt.Errorf("exporting: %w", err)
		}
		if output != "" && output != "-" {
			fmt.Fprintf(os.Stderr, "Exported board to %s\n", output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
}
