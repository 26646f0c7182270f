// Package main builds the modeldrop binary: one executable that can run the
// API or the worker, manage the database and blobs, and drive the local
// docker compose stack. Each subcommand is a cobra.Command value; cobra parses
// flags and calls RunE, which returns an error instead of exiting so main can
// report it in one place.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/ModelDrop/internal/app"
	"github.com/dharsanguruparan/ModelDrop/internal/config"
	"github.com/dharsanguruparan/ModelDrop/internal/database"
	"github.com/dharsanguruparan/ModelDrop/internal/ident"
)

var composeFile string

func main() {
	// NotifyContext cancels ctx on Ctrl-C or SIGTERM; every long-running
	// subcommand watches cmd.Context() and shuts down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "modeldrop: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modeldrop",
		Short: "ModelDrop service and development CLI",
		Long: `ModelDrop CLI runs the API and worker processes, applies migrations, sweeps orphaned
blobs, and wraps the docker compose stack used for local development.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&composeFile, "compose-file", "f", "docker-compose.yml", "Compose file to use for stack commands")
	cmd.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newMigrateCmd(),
		newSweepCmd(),
		newGenIDCmd(),
		newTestCmd(),
	)
	for _, action := range composeActions {
		cmd.AddCommand(newComposeCmd(action))
	}
	return cmd
}

// loadConfig is shared by every command that talks to real infrastructure.
// Returning three values is ordinary in Go; the error comes last.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, config.SetupLogger(cfg), nil
}

func newServeCmd() *cobra.Command {
	var memory bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API against Postgres and the configured blob store.

With --memory, records live in process memory and blobs go to MODELDROP_DATA_DIR;
Postgres and Redis are not contacted and uploads are forgotten on restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if memory {
				return app.RunMemoryAPI(cmd.Context(), cfg, logger)
			}
			return app.RunAPI(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "Keep records in memory and skip Postgres and Redis")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the cleanup worker and orphan sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return app.RunWorker(cmd.Context(), cfg, logger)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return database.Migrate(cfg.DatabaseURL, logger)
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete orphaned blobs once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			n, err := app.SweepOnce(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned blobs\n", n)
			return nil
		},
	}
}

func newGenIDCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "gen-id",
		Short: "Print fresh resource identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be at least 1")
			}
			gen := ident.New()
			for i := 0; i < count; i++ {
				fmt.Fprintln(cmd.OutOrStdout(), gen.New())
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of identifiers to print")
	return cmd
}

// composeToggle is a boolean flag that contributes docker compose arguments
// when it is set.
type composeToggle struct {
	name      string
	shorthand string
	def       bool
	usage     string
	args      []string
}

// composeAction describes one docker compose verb exposed as a subcommand.
type composeAction struct {
	verb     string
	short    string
	services bool
	toggles  []composeToggle
}

// -f is taken by --compose-file, so logs only gets the long --follow.
var composeActions = []composeAction{
	{
		verb:     "build",
		short:    "Build the api and worker images",
		services: true,
		toggles:  []composeToggle{{name: "no-cache", usage: "Disable Docker build cache", args: []string{"--no-cache"}}},
	},
	{
		verb:     "up",
		short:    "Start Postgres, Redis, MinIO and the ModelDrop services",
		services: true,
		toggles: []composeToggle{
			{name: "build", def: true, usage: "Rebuild images before starting", args: []string{"--build"}},
			{name: "detached", shorthand: "d", def: true, usage: "Return once the containers are up", args: []string{"-d"}},
		},
	},
	{
		verb:    "down",
		short:   "Stop the compose stack",
		toggles: []composeToggle{{name: "volumes", shorthand: "v", usage: "Also remove the postgres, redis and minio volumes", args: []string{"-v"}}},
	},
	{
		verb:     "logs",
		short:    "Show logs from compose services",
		services: true,
		toggles:  []composeToggle{{name: "follow", usage: "Stream logs continuously", args: []string{"-f"}}},
	},
}

func newComposeCmd(action composeAction) *cobra.Command {
	set := make([]bool, len(action.toggles))
	use := action.verb
	args := cobra.NoArgs
	if action.services {
		use += " [service...]"
		args = cobra.ArbitraryArgs
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: action.short,
		Args:  args,
		RunE: func(cmd *cobra.Command, services []string) error {
			composeArgs := []string{"compose", "-f", composeFile, action.verb}
			for i, toggle := range action.toggles {
				if set[i] {
					composeArgs = append(composeArgs, toggle.args...)
				}
			}
			composeArgs = append(composeArgs, services...)
			return execute(cmd.Context(), invocation{name: "docker", args: composeArgs})
		},
	}
	for i, toggle := range action.toggles {
		cmd.Flags().BoolVarP(&set[i], toggle.name, toggle.shorthand, toggle.def, toggle.usage)
	}
	return cmd
}

func newTestCmd() *cobra.Command {
	var race bool
	var integration bool
	cmd := &cobra.Command{
		Use:   "test [packages]",
		Short: "Run Go tests (defaults to ./...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs := args
			if len(pkgs) == 0 {
				pkgs = []string{"./..."}
			}
			inv := invocation{name: "go", args: []string{"test"}}
			if race {
				inv.args = append(inv.args, "-race")
			}
			inv.args = append(inv.args, pkgs...)
			// The Postgres and Redis container tests skip themselves
			// unless this variable is present.
			if integration {
				inv.env = []string{"TEST_INTEGRATION=1"}
			}
			return execute(cmd.Context(), inv)
		},
	}
	cmd.Flags().BoolVar(&race, "race", false, "Enable Go race detector")
	cmd.Flags().BoolVar(&integration, "integration", false, "Also run testcontainers-backed tests")
	return cmd
}

// invocation is an external program run with the CLI's own stdio.
type invocation struct {
	name string
	args []string
	env  []string
}

// execute is a variable so tests can capture invocations instead of
// starting docker or go.
var execute = func(ctx context.Context, inv invocation) error {
	execCmd := exec.CommandContext(ctx, inv.name, inv.args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	if len(inv.env) > 0 {
		execCmd.Env = append(os.Environ(), inv.env...)
	}
	return execCmd.Run()
}
