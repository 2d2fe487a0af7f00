package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"deepresearch/internal/config"
	"deepresearch/internal/llm"
	"deepresearch/internal/logging"
	"deepresearch/internal/research"
	"deepresearch/internal/retrieval"
	"deepresearch/internal/search"
	"deepresearch/internal/state"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	outputPath  string
	snapshotOut string
	interactive bool
	language    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "deepresearch",
	Short: "Automated multi-section deep research with cited reports",
	Long: `deepresearch plans a multi-section research report for a topic, then
iteratively searches the web, retrieves and summarizes sources, builds a
knowledge graph, and writes a single cited report.

Runs fully automatic by default; pass --interactive to approve the plan,
each search query, and the sources before they are used.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

var runCmd = &cobra.Command{
	Use:   "run [topic]",
	Short: "Research a topic and write the final report",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResearch,
}

var resumeCmd = &cobra.Command{
	Use:   "resume [snapshot.json]",
	Short: "Resume a paused or interrupted session from a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  resumeResearch,
}

var askCmd = &cobra.Command{
	Use:   "ask [snapshot.json] [question]",
	Short: "Ask a follow-up question against a finished session",
	Args:  cobra.MinimumNArgs(2),
	RunE:  askFollowUp,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "report output path (default from config)")
	rootCmd.PersistentFlags().StringVar(&snapshotOut, "snapshot", "research_session.json", "where to save the session snapshot on pause or interrupt")
	rootCmd.PersistentFlags().BoolVarP(&interactive, "interactive", "i", false, "pause for plan/query/source approval")
	rootCmd.PersistentFlags().StringVarP(&language, "language", "l", "", "report language (default from config)")

	rootCmd.AddCommand(runCmd, resumeCmd, askCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildEngine assembles the research pipeline from configuration.
func buildEngine(ctx context.Context, cfg *config.Config) (*research.Loop, error) {
	if cfg.Logging.Enabled {
		if err := logging.Initialize(cfg.Logging.Dir, cfg.Logging.Level); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
	}

	facade, err := llm.NewFacadeFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm setup: %w", err)
	}
	provider, err := search.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("search setup: %w", err)
	}

	var retriever retrieval.Retriever
	if cfg.Research.UseSnippetsOnlyMode {
		retriever = retrieval.SnippetOnly{}
	} else {
		retriever, err = retrieval.NewHTTPRetriever(cfg)
		if err != nil {
			return nil, fmt.Errorf("retriever setup: %w", err)
		}
	}

	return research.NewLoop(facade, search.NewEngine(provider), retriever, cfg, consoleProgress{}), nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if interactive {
		cfg.Research.InteractiveMode = true
	}
	if language != "" {
		cfg.Language = language
	}
	if outputPath != "" {
		cfg.OutputFilename = outputPath
	}
	return cfg, nil
}

func runResearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	topic := strings.Join(args, " ")
	st := state.New(topic, cfg.Language)
	return driveSession(cmd.Context(), cfg, st)
}

func resumeResearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	st, err := state.Restore(data)
	if err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	st.Interrupted = false
	logger.Info("resuming session",
		zap.String("session", st.SessionID),
		zap.String("topic", st.Topic))
	return driveSession(cmd.Context(), cfg, st)
}

func askFollowUp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	st, err := state.Restore(data)
	if err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}

	facade, err := llm.NewFacadeFromConfig(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	question := strings.Join(args[1:], " ")
	answer, err := research.NewReporter(facade).FollowUp(cmd.Context(), st, question)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

// driveSession runs the loop to completion, resolving interactive gates
// on stdin. Ctrl-C flips the cooperative interruption flag so the run
// still ends in a partial report; a second Ctrl-C kills the process.
func driveSession(ctx context.Context, cfg *config.Config, st *state.ResearchState) error {
	engine, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		<-sigs
		logger.Warn("interrupt received, finishing with completed sections")
		st.Interrupted = true
		<-sigs
		os.Exit(1)
	}()

	reader := bufio.NewReader(os.Stdin)
	for {
		outcome, err := engine.Run(ctx, st)
		if err != nil {
			saveSnapshot(st)
			return err
		}
		if !outcome.IsPaused() {
			if st.Interrupted {
				saveSnapshot(st)
			}
			return writeReport(cfg, outcome.Report)
		}

		switch outcome.Paused {
		case research.PausePlanApproval:
			resolvePlanGate(reader, engine, st)
		case research.PauseQueryApproval:
			resolveQueryGate(reader, engine, st)
		case research.PauseSourceSelection:
			resolveSourceGate(reader, engine, st)
		default:
			return fmt.Errorf("unknown pause reason %q", outcome.Paused)
		}
		saveSnapshot(st)
	}
}

func resolvePlanGate(reader *bufio.Reader, engine *research.Loop, st *state.ResearchState) {
	fmt.Println("\nProposed research plan:")
	for i, sec := range st.Sections {
		fmt.Printf("  %d. %s — %s\n", i+1, sec.Title, sec.Description)
	}
	fmt.Print("Approve plan? [Y/n] ")
	if readLine(reader) == "n" {
		fmt.Println("Edit the snapshot's sections and resume, or press Ctrl-C to abort.")
	}
	engine.ApprovePlan(st)
}

func resolveQueryGate(reader *bufio.Reader, engine *research.Loop, st *state.ResearchState) {
	fmt.Printf("\nProposed search query: %s\n", st.ProposedQuery)
	fmt.Print("Press enter to accept, or type a replacement: ")
	engine.SetQuery(st, readLine(reader))
}

func resolveSourceGate(reader *bufio.Reader, engine *research.Loop, st *state.ResearchState) {
	fmt.Println("\nSearch results:")
	for i, r := range st.SearchResults {
		fmt.Printf("  %d. %s\n     %s\n", i+1, r.Title, r.Link)
	}
	fmt.Print("Select sources (comma-separated numbers, enter for all): ")
	line := readLine(reader)

	if line == "" {
		indices := make([]int, len(st.SearchResults))
		for i := range indices {
			indices[i] = i
		}
		engine.SelectSources(st, indices)
		return
	}
	var indices []int
	for _, part := range strings.Split(line, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			indices = append(indices, n-1)
		}
	}
	engine.SelectSources(st, indices)
}

func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func writeReport(cfg *config.Config, report string) error {
	if err := os.WriteFile(cfg.OutputFilename, []byte(report), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Info("report written", zap.String("path", cfg.OutputFilename))
	fmt.Println(report)
	return nil
}

func saveSnapshot(st *state.ResearchState) {
	data, err := st.Snapshot()
	if err != nil {
		logger.Warn("snapshot failed", zap.Error(err))
		return
	}
	if err := os.WriteFile(snapshotOut, data, 0644); err != nil {
		logger.Warn("snapshot write failed", zap.Error(err))
		return
	}
	logger.Info("session snapshot saved", zap.String("path", snapshotOut))
}

// consoleProgress prints phase transitions to stderr so they interleave
// cleanly with the report on stdout.
type consoleProgress struct{}

func (consoleProgress) Notify(ctx context.Context, message string) {
	fmt.Fprintf(os.Stderr, "* %s\n", message)
}
