package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessro/spotpanel/internal/core"
)

var logLines int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the speaker service's recent log",
	Long: `Prints the most recent lines the speaker service wrote to the user
journal, oldest first.

Examples:
  spotpanel logs
  spotpanel logs -n 200`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntVarP(&logLines, "lines", "n", core.DefaultLogLines,
		fmt.Sprintf("number of lines to show (at most %d)", core.MaxLogLines))
	rootCmd.AddCommand(logsCmd)
}

type logsReport struct {
	Unit  string   `json:"unit"`
	Lines []string `json:"lines"`
}

func runLogs(cmd *cobra.Command, args []string) error {
	log, err := newLogger(false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	remote, err := newRemote(log)
	if err != nil {
		return err
	}

	lines, err := remote.Logs(cmd.Context(), logLines)
	if err != nil {
		return err
	}
	if JSONOutput() {
		return printJSON(logsReport{Unit: cfg.Service.Unit, Lines: lines})
	}
	writeLogs(os.Stdout, lines)
	return nil
}

func writeLogs(w io.Writer, lines []string) {
	if len(lines) == 0 {
		fmt.Fprintln(w, "No log entries.")
		return
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
