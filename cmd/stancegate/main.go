// Package main is the entry point for the stancegate CLI.
// stancegate runs messages through the gate pipeline: intent, shield, lens,
// stance, capability, constraints, generation, personality and spark.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/normanking/stancegate/internal/bus"
	"github.com/normanking/stancegate/internal/capability"
	"github.com/normanking/stancegate/internal/config"
	"github.com/normanking/stancegate/internal/intent"
	"github.com/normanking/stancegate/internal/lens"
	"github.com/normanking/stancegate/internal/llm"
	"github.com/normanking/stancegate/internal/logging"
	"github.com/normanking/stancegate/internal/metrics"
	"github.com/normanking/stancegate/internal/pipeline"
	"github.com/normanking/stancegate/internal/precondition"
	"github.com/normanking/stancegate/internal/server"
	"github.com/normanking/stancegate/internal/shield"
	"github.com/normanking/stancegate/internal/state"
)

var (
	version    = "0.1.0"
	cfgPath    string
	verbose    bool
	jsonOutput bool
	heuristic  bool
	noColor    bool

	cfg         *config.Config
	closeLogger = func() error { return nil }
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stancegate",
		Short: "stancegate - gate pipeline for assistant replies",
		Long: `stancegate classifies each message, decides how the assistant may respond,
and validates the generated reply before it is returned.

Answer a message:     stancegate run "should I refinance my mortgage?"
Classify only:        stancegate classify "hey what's up"
Serve over HTTP:      stancegate serve --addr 127.0.0.1:8420
Check preconditions:  stancegate check --user user_1 --session s1 session_active
Configuration:        stancegate config show
Usable oracles:       stancegate config providers`,
		PersistentPreRunE: initialize,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = closeLogger()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.stancegate/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&heuristic, "heuristic", false, "classify with keyword rules only, without the oracle")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stancegate v%s\n", version)
		},
	})

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initialize loads API keys, configuration and the global logger.
func initialize(cmd *cobra.Command, args []string) error {
	loadEnvFiles()
	setupColor(noColor || jsonOutput)

	var err error
	cfg, err = loadConfig()
	if err != nil {
		return err
	}
	if heuristic {
		cfg.Intent.Mode = config.ModeHeuristic
		cfg.Shield.Mode = config.ModeHeuristic
	}

	logCfg := &logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		FilePath:  cfg.Logging.File,
		Colored:   !noColor,
		Component: "stancegate",
	}
	if verbose {
		logCfg.Level = "debug"
	}

	closeLogger, err = logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	log.Debug().Str("config", getConfigPath()).Msg("configuration loaded")
	return nil
}

// loadEnvFiles loads API keys from ~/.stancegate/.env and ./.env. Variables
// already set in the environment win.
func loadEnvFiles() {
	paths := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append([]string{filepath.Join(home, ".stancegate", ".env")}, paths...)
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", p, err)
		}
	}
}

func getConfigPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".stancegate", "config.yaml")
}

func loadConfig() (*config.Config, error) {
	c, err := config.LoadFromPath(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ═══════════════════════════════════════════════════════════════════════════════
// RUN COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func runCmd() *cobra.Command {
	var (
		userID    string
		sessionID string
		actions   []string
		requires  []string
	)

	cmd := &cobra.Command{
		Use:   "run [message]",
		Short: "Run a message through the full pipeline",
		Long: `Run a message through every gate and print the validated reply.

Actions are given as source[:capability], for example ui_button:schedule_job.
Free-text inferred actions (nl_inference) are always denied.

Examples:
  stancegate run "remind me to stretch every hour" --action ui_button:schedule_job
  stancegate run --json "what's the price of bitcoin today?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := parseActions(actions)
			if err != nil {
				return err
			}

			oracle, err := llm.NewOracle(cfg)
			if err != nil {
				return fmt.Errorf("create oracle: %w", err)
			}

			if err := checkKnown(requires); err != nil {
				return err
			}
			var opts []pipeline.Option
			if len(requires) > 0 {
				opts = append(opts, pipeline.WithActionPreconditions(requires...))
			}

			p := pipeline.New(cfg, oracle, pipeline.NewOracleGenerator(oracle), opts...)

			ctx, cancel := signalContext()
			defer cancel()

			resp, err := p.Handle(ctx, pipeline.Input{
				Text:      strings.Join(args, " "),
				UserID:    userID,
				SessionID: sessionID,
				Actions:   sources,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(resp)
			}

			fmt.Println(resp.Text)
			fmt.Println()
			fmt.Printf("%s %s  %s %s  %s %d",
				labelStyle.Render("stance"), renderStance(resp.Stance),
				labelStyle.Render("outcome"), renderOutcome(resp.Outcome),
				labelStyle.Render("attempts"), resp.Attempts)
			if resp.Degraded {
				fmt.Print("  " + warnStyle.Render("degraded"))
			}
			fmt.Println()
			if resp.AckToken != "" {
				fmt.Printf("%s %s\n", labelStyle.Render("ack token"), resp.AckToken)
			}
			for _, a := range resp.Actions {
				fmt.Printf("%s %s (%s via %s)\n", labelStyle.Render("action"), a.ID, a.Capability, a.Source)
			}
			if len(resp.ActionsBlocked) > 0 {
				fmt.Printf("%s %s\n", failStyle.Render("actions blocked"), strings.Join(resp.ActionsBlocked, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID")
	cmd.Flags().StringVar(&sessionID, "session", "", "session ID")
	cmd.Flags().StringArrayVar(&actions, "action", nil, "requested action as source[:capability] (repeatable)")
	cmd.Flags().StringSliceVar(&requires, "require", nil, "preconditions every explicit action requires")

	return cmd
}

// checkKnown rejects precondition names the checker would always deny.
func checkKnown(names []string) error {
	for _, name := range names {
		if !precondition.Known(name) {
			return fmt.Errorf("unknown precondition %q (known: %s)", name, strings.Join(precondition.Names(), ", "))
		}
	}
	return nil
}

func parseActions(specs []string) ([]capability.ActionSource, error) {
	sources := make([]capability.ActionSource, 0, len(specs))
	for i, spec := range specs {
		src, capName, _ := strings.Cut(spec, ":")
		if src == "" {
			return nil, fmt.Errorf("invalid action %q: missing source", spec)
		}
		sources = append(sources, capability.ActionSource{
			ID:         fmt.Sprintf("action-%d", i+1),
			Source:     capability.Source(src),
			Capability: capability.Capability(capName),
		})
	}
	return sources, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// SERVE COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func serveCmd() *cobra.Command {
	srvCfg := server.DefaultConfig()
	var requires []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP",
		Long: `Serve the pipeline over HTTP.

Endpoints:
  POST /v1/messages   {"text": "...", "userId": "...", "sessionId": "...", "actions": [...]}
  GET  /v1/stats      aggregate counters since startup
  GET  /healthz       liveness`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkKnown(requires); err != nil {
				return err
			}
			oracle, err := llm.NewOracle(cfg)
			if err != nil {
				return fmt.Errorf("create oracle: %w", err)
			}

			events := bus.New()
			defer events.Close()

			collector := metrics.NewCollector(events)
			if err := collector.Start(); err != nil {
				return fmt.Errorf("start metrics: %w", err)
			}
			defer collector.Stop()

			opts := []pipeline.Option{pipeline.WithBus(events)}
			if len(requires) > 0 {
				opts = append(opts, pipeline.WithActionPreconditions(requires...))
			}
			p := pipeline.New(cfg, oracle, pipeline.NewOracleGenerator(oracle), opts...)

			ctx, cancel := signalContext()
			defer cancel()

			return server.New(srvCfg, p, collector).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&srvCfg.Addr, "addr", srvCfg.Addr, "listen address")
	cmd.Flags().DurationVar(&srvCfg.RequestTimeout, "request-timeout", srvCfg.RequestTimeout, "deadline for one request")
	cmd.Flags().StringSliceVar(&requires, "require", nil, "preconditions every explicit action requires")

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// CLASSIFY COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [message]",
		Short: "Run the intent, shield and lens gates without generating",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var oracle llm.Oracle
			if cfg.Intent.Mode == config.ModeOracle || cfg.Shield.Mode == config.ModeOracle {
				o, err := llm.NewOracle(cfg)
				if err != nil {
					log.Warn().Err(err).Msg("oracle unavailable, classifiers will fail open")
				} else {
					oracle = o
				}
			}

			ctx, cancel := signalContext()
			defer cancel()

			text := state.NormalizeText(strings.Join(args, " "))
			result := struct {
				Intent any `json:"intent"`
				Shield any `json:"shield"`
				Lens   any `json:"lens"`
			}{
				Intent: intent.NewGate(intent.New(cfg.Intent, oracle)).Run(ctx, text),
				Shield: shield.NewGate(shield.New(cfg.Shield, oracle)).Run(ctx, text),
				Lens:   lens.NewGate(nil).Run(ctx, text),
			}
			return printJSON(result)
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// CHECK COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func checkCmd() *cobra.Command {
	var (
		userID       string
		sessionID    string
		sessionEnded bool
		pendingAck   bool
	)

	cmd := &cobra.Command{
		Use:   "check [precondition...]",
		Short: "Evaluate named preconditions against a request context",
		Long: `Evaluate named preconditions. Unknown names are always denied.

With no arguments, lists the known preconditions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, name := range precondition.Names() {
					fmt.Println(name)
				}
				return nil
			}

			s := state.New(state.Input{UserID: userID, SessionID: sessionID})
			s.SessionEnded = sessionEnded
			s.PendingAck = pendingAck
			s.Verification.Plan = &state.VerificationPlan{VerificationStatus: lens.StatusNotRequired, Verified: true}

			res := precondition.Run(args, s)
			if jsonOutput {
				return printJSON(res)
			}
			for _, name := range res.Output.Passed {
				fmt.Printf("%s %s\n", okStyle.Render("✓"), name)
			}
			for _, name := range res.Output.Failed {
				fmt.Printf("%s %s\n", failStyle.Render("✗"), name)
			}
			if !res.Output.Satisfied {
				return errors.New(res.FailureReason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID")
	cmd.Flags().StringVar(&sessionID, "session", "", "session ID")
	cmd.Flags().BoolVar(&sessionEnded, "session-ended", false, "treat the session as ended")
	cmd.Flags().BoolVar(&pendingAck, "pending-ack", false, "treat a soft veto as awaiting acknowledgment")

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := *cfg
			shown.LLM.Providers = make(map[string]config.ProviderConfig, len(cfg.LLM.Providers))
			for name, p := range cfg.LLM.Providers {
				if p.APIKey != "" {
					p.APIKey = "********"
				}
				shown.LLM.Providers[name] = p
			}

			if jsonOutput {
				return printJSON(shown)
			}
			out, err := yaml.Marshal(shown)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := getConfigPath()
			if err := config.Default().SaveToPath(path); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "providers",
		Short: "List configured oracle providers and whether they can be used",
		RunE: func(cmd *cobra.Command, args []string) error {
			usable := llm.AvailableProviders(cfg)
			names := slices.Sorted(maps.Keys(cfg.LLM.Providers))

			if jsonOutput {
				return printJSON(map[string]any{
					"default":   cfg.LLM.DefaultProvider,
					"available": usable,
				})
			}
			for _, name := range names {
				mark := failStyle.Render("✗")
				if slices.Contains(usable, name) {
					mark = okStyle.Render("✓")
				}
				suffix := ""
				if name == cfg.LLM.DefaultProvider {
					suffix = " " + labelStyle.Render("(default)")
				}
				fmt.Printf("%s %s%s\n", mark, name, suffix)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(getConfigPath())
		},
	})

	return cmd
}
