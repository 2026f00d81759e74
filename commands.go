package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// commandDeps lets tests swap the gateway constructor.
type commandDeps struct {
	getenv    func(string) string
	newOracle func(ctx context.Context, cfg gatewayConfig, logger *zap.Logger) (oracle, error)
}

func defaultCommandDeps() commandDeps {
	return commandDeps{
		getenv: os.Getenv,
		newOracle: func(ctx context.Context, cfg gatewayConfig, logger *zap.Logger) (oracle, error) {
			return newGeminiGateway(ctx, cfg, nil, logger)
		},
	}
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(defaultCommandDeps())
}

func newRootCommandWith(deps commandDeps) *cobra.Command {
	cfg := &appConfig{}
	cmd := &cobra.Command{
		Use:   "latticework",
		Short: "Browse mental models and apply them to your problems",
		Long: `latticework is a terminal catalogue of mental models.

Browse and filter the latticework, read a generated deep dive for any model,
file models you do not understand into the too-hard pile, and apply a model to
a problem in the lab. Generation uses the Gemini API; set GEMINI_API_KEY.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), *cfg, deps)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.catalogPath, "catalog", "", "YAML catalogue to load instead of the built-in one")
	flags.StringVar(&cfg.promptDir, "prompt-dir", "", "directory with prompt template overrides (default "+defaultPromptOverrideDir+")")
	flags.StringVar(&cfg.logFile, "log-file", "", "log file for the interactive UI (default $XDG_CACHE_HOME/latticework/latticework.log)")
	flags.DurationVar(&cfg.timeout, "timeout", 0, "per-request timeout for generation calls (0 disables)")
	flags.BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&cfg.dark, "dark", false, "start with the dark theme")

	cmd.AddCommand(
		newModelsCmd(cfg),
		newDeepDiveCmd(cfg, deps),
		newSolveCmd(cfg, deps),
		newWisdomCmd(cfg, deps),
		newPromptsCmd(cfg),
		newVersionCmd(),
	)
	return cmd
}

func runTUI(ctx context.Context, cfg appConfig, deps commandDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := newLogger(cfg.logFile, cfg.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cat, err := loadCatalog(cfg.catalogPath, logger)
	if err != nil {
		return err
	}
	gwCfg, err := resolveGatewayConfig(cfg, deps.getenv)
	if err != nil {
		return err
	}
	o, err := deps.newOracle(ctx, gwCfg, logger)
	if err != nil {
		return err
	}

	sess := newSession(cat, rand.IntN)
	sess.dark = cfg.dark
	logger.Info("starting latticework",
		zap.String("version", version),
		zap.String("flash_model", gwCfg.flashModel),
		zap.String("pro_model", gwCfg.proModel),
		zap.Duration("timeout", cfg.timeout))

	program := tea.NewProgram(newModel(sess, o, logger, cfg.timeout), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run UI: %w", err)
	}
	return nil
}

// cliRuntime is what the one-shot subcommands need.
type cliRuntime struct {
	logger  *zap.Logger
	catalog *catalog
	oracle  oracle
}

func newCLIRuntime(ctx context.Context, cfg appConfig, deps commandDeps, withOracle bool) (*cliRuntime, error) {
	logger, err := newCLILogger(cfg.verbose)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog(cfg.catalogPath, logger)
	if err != nil {
		return nil, err
	}
	rt := &cliRuntime{logger: logger, catalog: cat}
	if !withOracle {
		return rt, nil
	}
	gwCfg, err := resolveGatewayConfig(cfg, deps.getenv)
	if err != nil {
		return nil, err
	}
	if rt.oracle, err = deps.newOracle(ctx, gwCfg, logger); err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *cliRuntime) lookupModel(id string) (ModelEntry, error) {
	entry, ok := rt.catalog.lookup(strings.TrimSpace(id))
	if !ok {
		return ModelEntry{}, fmt.Errorf("unknown model %q (see 'latticework models')", id)
	}
	return entry, nil
}

func newModelsCmd(cfg *appConfig) *cobra.Command {
	var (
		search     string
		discipline string
		hide       []string
	)
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Print the catalogue, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDiscipline(discipline)
			if err != nil {
				return err
			}
			rt, err := newCLIRuntime(cmd.Context(), *cfg, commandDeps{}, false)
			if err != nil {
				return err
			}
			models := filterModels(rt.catalog.allModels(), search, d, hide)
			return printModels(cmd.OutOrStdout(), models)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive text matched against titles and summaries")
	cmd.Flags().StringVarP(&discipline, "discipline", "d", "All", "discipline to show (All, Psychology, Economics, Physics, Math, Biology, General)")
	cmd.Flags().StringSliceVar(&hide, "hide", nil, "model ids to leave out, as if dismissed")
	return cmd
}

func printModels(w io.Writer, models []ModelEntry) error {
	if len(models) == 0 {
		_, err := fmt.Fprintln(w, "No models match.")
		return err
	}
	rows := make([][]string, 0, len(models))
	for _, m := range models {
		rows = append(rows, []string{m.Icon.glyph(), m.ID, m.Title, string(m.Discipline), m.Summary})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "ID", "TITLE", "DISCIPLINE", "SUMMARY").
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func newDeepDiveCmd(cfg *appConfig, deps commandDeps) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "deep-dive <model-id>",
		Short: "Generate a deep dive for one model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newCLIRuntime(cmd.Context(), *cfg, deps, true)
			if err != nil {
				return err
			}
			entry, err := rt.lookupModel(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd.Context(), cfg.timeout)
			defer cancel()
			text, err := rt.oracle.DeepDive(ctx, entry.Title)
			if err != nil {
				return err
			}
			if raw {
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(text))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderMarkdown(text, 80, cfg.dark))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the markdown source instead of rendering it")
	return cmd
}

func newSolveCmd(cfg *appConfig, deps commandDeps) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "solve <model-id> <problem...>",
		Short: "Apply a model to a problem",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			problem := strings.TrimSpace(strings.Join(args[1:], " "))
			if problem == "" {
				return fmt.Errorf("problem text is required")
			}
			rt, err := newCLIRuntime(cmd.Context(), *cfg, deps, true)
			if err != nil {
				return err
			}
			entry, err := rt.lookupModel(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd.Context(), cfg.timeout)
			defer cancel()
			analysis, err := rt.oracle.Solve(ctx, entry.Title, problem)
			if err != nil {
				return err
			}
			if analysis.Steps == nil {
				analysis.Steps = []string{}
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(analysis)
			}
			printAnalysis(cmd.OutOrStdout(), entry.Title, analysis)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the analysis as JSON")
	return cmd
}

func printAnalysis(w io.Writer, title string, a Analysis) {
	fmt.Fprintf(w, "Analysis via %s\n\n", title)
	fmt.Fprintln(w, wrapText(a.Analysis, 80))
	if len(a.Steps) > 0 {
		fmt.Fprintln(w, "\nSteps")
		for idx, step := range a.Steps {
			fmt.Fprintf(w, "%2d. %s\n", idx+1, oneLine(step))
		}
	}
	if strings.TrimSpace(a.Conclusion) != "" {
		fmt.Fprintln(w, "\nConclusion")
		fmt.Fprintln(w, wrapText(a.Conclusion, 80))
	}
}

func newWisdomCmd(cfg *appConfig, deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "wisdom",
		Short: "Print one piece of generated wisdom",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newCLIRuntime(cmd.Context(), *cfg, deps, true)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd.Context(), cfg.timeout)
			defer cancel()
			text, err := rt.oracle.Wisdom(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(text))
			return nil
		},
	}
}

func newPromptsCmd(cfg *appConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Inspect and export prompt templates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List templates and where each is loaded from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPromptSources(cmd.OutOrStdout(), cfg.promptDir)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Print the active template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showActivePrompt(cmd.OutOrStdout(), args[0], cfg.promptDir)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "diff <name>",
		Short: "Diff an override against the built-in template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return diffPromptTemplate(cmd.OutOrStdout(), args[0], cfg.promptDir)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export [dir]",
		Short: "Write the built-in templates to a directory for editing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := cfg.promptDir
			if len(args) == 1 {
				dir = args[0]
			}
			return exportPromptDefaults(cmd.OutOrStdout(), expandHome(dir))
		},
	})

	var vars PromptVars
	render := &cobra.Command{
		Use:   "render <name>",
		Short: "Render a template with sample values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := renderPromptByName(args[0], vars, cfg.promptDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	render.Flags().StringVar(&vars.Title, "title", "Inversion", "model title")
	render.Flags().StringVar(&vars.Problem, "problem", "Should I take the new job?", "problem text")
	cmd.AddCommand(render)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "latticework %s\n", version)
		},
	}
}
