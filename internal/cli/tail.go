package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tessro/spotpanel/internal/tail"
)

var (
	tailNoEmoji   bool
	tailTimestamp bool
	tailFormat    string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow playback changes in real-time",
	Long: `Watch the speaker and print playback changes as they happen.

Events tracked:
  - Clients connecting and disconnecting
  - Track changes, completions and skips
  - Play, pause and stop
  - Volume changes and seeks

Emoji are only printed when stdout is a terminal.

Template fields: .Type .Timestamp .Title .Artist .Album .State .Position
.Duration .Volume`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().BoolVar(&tailNoEmoji, "no-emoji", false, "disable emoji output")
	tailCmd.Flags().BoolVarP(&tailTimestamp, "timestamp", "t", false, "show timestamps")
	tailCmd.Flags().StringVarP(&tailFormat, "format", "f", "", "custom format template")

	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	log, err := newLogger(false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	remote, err := newRemote(log)
	if err != nil {
		return err
	}

	emoji := !tailNoEmoji && term.IsTerminal(int(os.Stdout.Fd()))
	formatter := tail.NewFormatter(
		tail.WithEmoji(emoji),
		tail.WithTimestamp(tailTimestamp),
		tail.WithTemplate(tailFormat),
	)

	ctx := cmd.Context()
	watcher := tail.NewWatcher(remote)

	errCh := make(chan error, 1)
	go func() {
		errCh <- watcher.Start(ctx)
	}()

	for event := range watcher.Events() {
		fmt.Println(formatter.Format(event))
	}
	if err := <-errCh; err != nil && ctx.Err() == nil {
		return fmt.Errorf("tail: %w", err)
	}
	return nil
}
