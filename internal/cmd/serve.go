package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/agent"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/api"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/critic"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/genai"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/logger"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/notify"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/recovery"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/retry"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/scheduler"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/store"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/tools"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the approval and failure-triage API",
		Long: `Run the HTTP API used to sign off waves and triage critical failures.

Endpoints:
  POST /v1/waves/:number/approval
  GET  /v1/failures
  GET  /v1/failures/:id
  POST /v1/failures/:id/resolve
  GET  /v1/health`,
		RunE: serveCommand,
	}
	cmd.Flags().String("config", "", "Path to config file (default: .neuralaunch/config.yaml)")
	cmd.Flags().String("listen", "", "Bind address (overrides config)")
	return cmd
}

func serveCommand(cmd *cobra.Command, _ []string) error {
	cfg, home, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.ListenAddr = listen
	}

	log := logger.NewConsoleLogger(os.Stdout, cfg.LogLevel)

	st, err := store.New(resolveStorePath(home, cfg.StorePath))
	if err != nil {
		return err
	}
	defer st.Close()

	gen, err := genai.NewOpenAIGenerator(os.Getenv("OPENAI_API_KEY"), cfg.Model)
	if err != nil {
		return err
	}

	workRoot, err := os.Getwd()
	if err != nil {
		return err
	}

	// Approvals may continue into the next wave, so the API gets a fully
	// wired scheduler, not just the store.
	sched := scheduler.New(
		st,
		agent.NewGeneratorRunner(gen, log),
		recovery.NewPipeline(gen, st, notify.NewLogNotifier(log), log),
		critic.NewGate(gen, tools.NewSandboxRunner(workRoot), log),
		retry.NewPolicy(nil, log),
		cfg,
		scheduler.NewArtifactStore(workRoot),
		log,
	)

	router := api.NewRouter(api.NewHandlers(sched, st, log))
	log.Infof("approval API listening on %s", cfg.ListenAddr)
	return router.Run(cfg.ListenAddr)
}
