package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/agent"
)

var agentListen string

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Serve the local speaker over HTTP",
	Long: `Run the HTTP agent on the machine hosting the speaker.

The agent drives the speaker through D-Bus (systemd and MPRIS) and serves it
to other spotpanel commands configured with backend.transport = "http".
Now playing changes are pushed to clients over a WebSocket.`,
	Args: cobra.NoArgs,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().StringVarP(&agentListen, "listen", "l", "", "listen address (default: agent.listen)")
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	log, err := newLogger(false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	addr := cfg.Agent.Listen
	if agentListen != "" {
		addr = agentListen
	}

	log.Info("starting agent",
		zap.String("listen", addr),
		zap.String("unit", cfg.Service.Unit),
		zap.String("bus_prefix", cfg.MPRIS.BusPrefix))

	srv := agent.New(newLocalRemote(log), log)
	return srv.ListenAndServe(cmd.Context(), addr)
}
