package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"socroom/cmd/socroom/chat"
	"socroom/internal/orchestrator"
	"socroom/internal/research"
	"socroom/internal/roster"
	"socroom/internal/voice"
)

var (
	// Global flags
	verbose       bool
	configPath    string
	endpoint      string
	researchURL   string
	researchKey   string
	geminiKey     string
	startRole     string
	settleDelayMS int

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "socroom",
	Short: "socroom - voice security operations room",
	Long: `socroom is a terminal client for a voice-driven security operations
room: a Client Officer triages your situation and hands the line to
specialists (Security, Travel, Researcher, Contacts, Medical), each backed
by its own conversational voice agent.

Agent IDs come from a YAML roster file (--config) or from
SOCROOM_AGENT_<ROLE> environment variables.

Run without arguments to open the interactive room.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		// The TUI owns stdout; keep logs on stderr.
		config.OutputPaths = []string{"stderr"}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runRoom()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "roster YAML file")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", voice.DefaultEndpoint, "conversational agent websocket endpoint")
	rootCmd.PersistentFlags().StringVar(&researchURL, "research-url", os.Getenv("SOCROOM_RESEARCH_URL"), "research endpoint URL")
	rootCmd.PersistentFlags().StringVar(&researchKey, "research-key", os.Getenv("SOCROOM_RESEARCH_KEY"), "research endpoint bearer token")
	rootCmd.PersistentFlags().StringVar(&geminiKey, "gemini-key", os.Getenv("GEMINI_API_KEY"), "Gemini API key for the fallback research backend")
	rootCmd.Flags().StringVar(&startRole, "role", string(roster.Primary), "role to open the room with")
	rootCmd.Flags().IntVar(&settleDelayMS, "settle-ms", 0, "override the session settle delay (milliseconds)")

	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(rosterCmd)
}

// runRoom wires the orchestration core and hands the terminal to the chat UI.
func runRoom() error {
	reg, err := roster.Load(configPath)
	if err != nil {
		return err
	}
	role, err := roster.ParseRole(startRole)
	if err != nil {
		return err
	}

	transport := voice.NewWSTransport(logger, voice.WithEndpoint(endpoint))
	runner := research.NewRunner(buildGateway(), logger)

	cfg := orchestrator.Config{
		Registry:  reg,
		Transport: transport,
		Research:  runner,
		Log:       logger,
	}
	if settleDelayMS > 0 {
		cfg.SettleDelay = time.Duration(settleDelayMS) * time.Millisecond
	}

	return chat.Run(cfg, reg, role)
}

// buildGateway picks the research backend: hosted endpoint first, Gemini
// as fallback, nil (degraded) when neither is configured.
func buildGateway() research.Gateway {
	if researchURL != "" {
		gw, err := research.NewHTTPGateway(researchURL, research.WithAPIKey(researchKey))
		if err == nil {
			return gw
		}
		logger.Warn("research endpoint rejected", zap.Error(err))
	}
	if geminiKey != "" {
		gw, err := research.NewGeminiGateway(rootCmd.Context(), geminiKey, "")
		if err == nil {
			return gw
		}
		logger.Warn("gemini research unavailable", zap.Error(err))
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
