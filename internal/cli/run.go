package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jantenpas/llm-eval-studio/internal/config"
	"github.com/jantenpas/llm-eval-studio/internal/eval"
	"github.com/jantenpas/llm-eval-studio/pkg/llm"
)

type runFlags struct {
	name         string
	systemPrompt string
	model        string
	resultsDir   string
}

func newRunCommand() *cobra.Command {
	flags := &runFlags{}

	runCmd := &cobra.Command{
		Use:   "run <test-cases.json>",
		Short: "Execute an evaluation suite against the configured model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd, args[0], flags)
		},
	}

	runCmd.Flags().StringVar(&flags.name, "name", "", "run name (defaults to the file name)")
	runCmd.Flags().StringVar(&flags.systemPrompt, "system-prompt", "", "system prompt applied to every test case")
	runCmd.Flags().StringVar(&flags.model, "model", "", "model to evaluate (defaults to the configured model)")
	runCmd.Flags().StringVar(&flags.resultsDir, "results-dir", "", "directory for result snapshots")

	return runCmd
}

func runSuite(cmd *cobra.Command, path string, flags *runFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if flags.model != "" {
		cfg.LLMModel = flags.model
	}
	if flags.resultsDir != "" {
		cfg.ResultsDir = flags.resultsDir
	}

	document, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read test cases: %w", err)
	}

	runName := flags.name
	if runName == "" {
		runName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	invoker, err := llm.NewInvoker(llm.ProviderConfig{
		Provider:  cfg.LLMProvider,
		APIKey:    providerKey(cfg),
		Model:     cfg.LLMModel,
		MaxTokens: cfg.MaxOutputTokens,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	pipeline := eval.NewPipeline(invoker, eval.Config{
		Model:      cfg.LLMModel,
		ResultsDir: cfg.ResultsDir,
	}, logger, cmd.OutOrStdout())

	report, err := pipeline.Execute(cmd.Context(), eval.Request{
		Document:     document,
		RunName:      runName,
		SystemPrompt: flags.systemPrompt,
	})
	if err != nil {
		return err
	}

	if errored := report.Errored(); errored > 0 {
		color.Red("Run '%s' finished with %d errored case(s).", report.Run.Name, errored)
	} else {
		color.Green("Run '%s' completed: %d/%d passed.", report.Run.Name, report.Summary.Passed, report.Summary.Total)
	}

	return nil
}

func providerKey(cfg config.Config) string {
	if strings.ToLower(cfg.LLMProvider) == llm.ProviderOpenAI {
		return cfg.OpenAIAPIKey
	}
	return cfg.AnthropicAPIKey
}
