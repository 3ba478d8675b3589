package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/agent"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/config"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/critic"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/filelock"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/genai"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/logger"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/notify"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/parser"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/recovery"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/retry"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/scheduler"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/store"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/tools"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <blueprint.md>",
		Short: "Execute a project blueprint",
		Long: `Execute a project blueprint wave by wave.

Each wave's tasks run concurrently under retry budgets. Exhausted tasks go
through failure analysis and recovery; completed waves pass the quality gate
before the next wave starts.

Configuration is loaded from .neuralaunch/config.yaml if present; flags
override file settings. The OPENAI_API_KEY environment variable must be set.

Examples:
  neuralaunch run blueprint.md
  neuralaunch run --project todo-app --strict blueprint.md
  neuralaunch run --resume --project todo-app blueprint.md`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .neuralaunch/config.yaml)")
	cmd.Flags().String("project", "", "Project identifier (default: derived from the blueprint title)")
	cmd.Flags().Bool("resume", false, "Resume an already seeded project instead of seeding")
	cmd.Flags().Bool("strict", false, "Apply strict quality-gate thresholds")
	cmd.Flags().Int("max-concurrency", 0, "Maximum concurrent tasks per wave (0 = use config)")
	cmd.Flags().String("model", "", "Generation model (overrides config)")

	return cmd
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, home, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		cfg.StrictGate = true
	}
	if n, _ := cmd.Flags().GetInt("max-concurrency"); n > 0 {
		cfg.MaxConcurrency = n
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Model = model
	}

	log := logger.NewConsoleLogger(os.Stdout, cfg.LogLevel)

	blueprintPath := args[0]
	f, err := os.Open(blueprintPath)
	if err != nil {
		return fmt.Errorf("open blueprint: %w", err)
	}
	bp, err := parser.NewBlueprintParser().Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parse blueprint %s: %w", blueprintPath, err)
	}

	projectID, _ := cmd.Flags().GetString("project")
	if projectID == "" {
		projectID = slug(bp.ProjectName)
	}

	guard, err := filelock.AcquireHome(home)
	if err != nil {
		return err
	}
	defer guard.Release()

	st, err := store.New(resolveStorePath(home, cfg.StorePath))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
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

	ctx := cmd.Context()
	if resume, _ := cmd.Flags().GetBool("resume"); !resume {
		if err := sched.Seed(ctx, projectID, bp); err != nil {
			return fmt.Errorf("seed project %s: %w", projectID, err)
		}
		log.Infof("seeded project %s: %d wave(s)", projectID, len(bp.Waves))
	}

	err = sched.Run(ctx, projectID)
	switch {
	case errors.Is(err, scheduler.ErrWaveStalled):
		log.Warnf("run stopped: %v", err)
		log.Infof("inspect with: neuralaunch failures --status open")
		return err
	case errors.Is(err, scheduler.ErrAwaitingApproval):
		log.Warnf("run stopped: %v", err)
		log.Infof("approve with the serve API, then rerun with --resume")
		return err
	case err != nil:
		return err
	}

	log.Infof("project %s: all waves completed", projectID)
	return nil
}

// loadConfig resolves the config file (flag override or home default) and
// returns the parsed config together with the home directory.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	home, err := config.Home()
	if err != nil {
		return nil, "", err
	}
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = filepath.Join(home, "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, home, nil
}

func resolveStorePath(home, storePath string) string {
	if storePath == ":memory:" || filepath.IsAbs(storePath) {
		return storePath
	}
	return filepath.Join(home, storePath)
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	out := slugRe.ReplaceAllString(strings.ToLower(s), "-")
	out = strings.Trim(out, "-")
	if out == "" {
		return "project"
	}
	return out
}
