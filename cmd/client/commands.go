package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/mfateev/temporal-deep-research/internal/cli"
	"github.com/mfateev/temporal-deep-research/internal/config"
	"github.com/mfateev/temporal-deep-research/internal/instructions"
	"github.com/mfateev/temporal-deep-research/internal/llm"
	"github.com/mfateev/temporal-deep-research/internal/logging"
	"github.com/mfateev/temporal-deep-research/internal/mcp"
	"github.com/mfateev/temporal-deep-research/internal/research"
	"github.com/mfateev/temporal-deep-research/internal/temporalclient"
	"github.com/mfateev/temporal-deep-research/internal/version"
	"github.com/mfateev/temporal-deep-research/internal/workflow"
)

type runFlags struct {
	model      string
	maxThreads int
	guidance   string
	workflowID string
	detach     bool
	plain      bool
}

func newRunCommand(global *globalFlags) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run [request]",
		Short: "Start a research run and print its report",
		Long: "Start a research run and follow it until the report is written.\n" +
			"The request is read from stdin when no argument is given. When the run\n" +
			"asks a clarifying question on a terminal, the answer starts a follow-up run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := requestText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runResearch(cmd.Context(), global, flags, message)
		},
	}
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "model for every stage (e.g. openai:gpt-4o)")
	cmd.Flags().IntVar(&flags.maxThreads, "max-threads", 0, "maximum parallel research threads")
	cmd.Flags().StringVar(&flags.guidance, "guidance", "", "guidance text replacing RESEARCH.md files")
	cmd.Flags().StringVar(&flags.workflowID, "workflow-id", "", "workflow ID of the run (generated when empty)")
	cmd.Flags().BoolVarP(&flags.detach, "detach", "d", false, "start the run and exit")
	cmd.Flags().BoolVar(&flags.plain, "plain", false, "print phase changes instead of the progress view")
	return cmd
}

func requestText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := stdin.(*os.File); ok && cli.IsTerminal(f) {
		return "", fmt.Errorf("no research request given")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read request: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func runResearch(ctx context.Context, global *globalFlags, flags runFlags, message string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flags.model != "" {
		cfg.Models = config.ModelsConfig{
			Scope:      flags.model,
			Supervisor: flags.model,
			Research:   flags.model,
			Compress:   flags.model,
			Report:     flags.model,
		}
	}
	if flags.maxThreads > 0 {
		cfg.Research.MaxConcurrentResearchUnits = flags.maxThreads
	}
	researchCfg, err := cfg.ResearchConfig()
	if err != nil {
		return err
	}
	guidance, err := collectGuidance(cfg, flags.guidance)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	// An answer to a clarifying question can only be typed on a terminal.
	interactive := cli.IsTerminal(os.Stdin) && !flags.detach
	app := cli.NewApp(research.NewRunner(c, cfg.TaskQueue()), cli.Options{
		Request: research.RunRequest{
			Message:    message,
			Config:     researchCfg,
			Guidance:   guidance,
			WorkflowID: flags.workflowID,
		},
		NoColor:      global.noColor,
		NoMarkdown:   global.noMarkdown,
		Interactive:  interactive,
		ShowProgress: cli.IsTerminal(os.Stderr) && !flags.plain,
		Detach:       flags.detach,
		In:           os.Stdin,
		Out:          os.Stdout,
		Err:          os.Stderr,
	})
	return app.Run(ctx)
}

// collectGuidance gathers the client-side guidance sources. The worker
// adds its own workspace guidance when the run reaches the supervisor.
func collectGuidance(cfg *config.Config, override string) (instructions.MergeInput, error) {
	input := instructions.MergeInput{Override: override}
	if override != "" {
		return input, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return input, err
	}
	if input.ProjectGuidance, err = instructions.DiscoverGuidance(cwd); err != nil {
		return input, fmt.Errorf("load project guidance: %w", err)
	}
	if input.PersonalGuidance, err = instructions.ReadPersonalGuidance(cfg.PersonalGuidancePath()); err != nil {
		return input, fmt.Errorf("load personal guidance: %w", err)
	}
	return input, nil
}

func dial(cfg *config.Config) (client.Client, error) {
	c, _, err := temporalclient.Dial(temporalclient.Overrides{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.Temporal(logging.New("error")),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to Temporal: %w", err)
	}
	return c, nil
}

// connect loads the config and returns a runner for commands that read
// existing runs.
func connect() (*research.Runner, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	c, err := dial(cfg)
	if err != nil {
		return nil, nil, err
	}
	return research.NewRunner(c, cfg.TaskQueue()), c.Close, nil
}

func newStatusCommand(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <workflow-id>",
		Short: "Show the progress of a research run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, closeFn, err := connect()
			if err != nil {
				return err
			}
			defer closeFn()

			status, err := runner.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			app := cli.NewApp(runner, cli.Options{NoColor: global.noColor, NoMarkdown: global.noMarkdown})
			fmt.Fprint(cmd.OutOrStdout(), app.StatusView(args[0], status))
			return nil
		},
	}
}

func newResultCommand(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "result <workflow-id>",
		Short: "Wait for a research run and print its outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, closeFn, err := connect()
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := runner.Result(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			app := cli.NewApp(runner, cli.Options{
				NoColor:    global.noColor,
				NoMarkdown: global.noMarkdown,
				Out:        cmd.OutOrStdout(),
				Err:        cmd.ErrOrStderr(),
			})
			if result.Outcome == workflow.OutcomeClarification {
				fmt.Fprintf(cmd.OutOrStdout(), "The run needs clarification: %s\n", result.ClarifyingQuestion)
				return nil
			}
			app.PrintReport(result)
			return nil
		},
	}
}

func newToolsCommand(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the MCP tools available to the report stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			servers, err := cfg.Servers(cwd)
			if err != nil {
				return err
			}
			gateway := mcp.NewGateway(servers)
			defer gateway.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			decls, err := gateway.ListTools(ctx)
			if err != nil {
				return fmt.Errorf("list tools: %w", err)
			}
			if len(decls) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tools available.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.ToolsTable(decls, cli.StylesFor(global.noColor)))
			return nil
		},
	}
}

func newModelsCommand(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models offered by the configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			available, err := llm.FetchAvailableModels(ctx, cfg.Credentials(), cfg.LocalModels())
			if err != nil {
				return err
			}
			if len(available) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No models available. Set OPENAI_API_KEY or ANTHROPIC_API_KEY.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.ModelsTable(available, cli.StylesFor(global.noColor)))
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
