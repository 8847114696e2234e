package main

import (
	"cmp"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tldr/internal/config"
	"tldr/internal/provider"
)

func NewRootCmd(version string, a *app) *cobra.Command {
	holder := &appHolder{app: a}

	rootCmd := &cobra.Command{
		Use:   "tldr [url|file|text]",
		Short: "Summarize web pages, documents, videos and threads",
		Long: `tldr reads a URL, a local file or plain text, extracts its content and
streams a summary from the configured model provider.

With no arguments the input is read from stdin.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return holder.init(cmd)
		},
		RunE: makeSummarizeRunner(holder),
	}

	addPersistentFlags(rootCmd)
	addSummarizeFlags(rootCmd)

	rootCmd.AddCommand(
		NewSummarizeCmd(holder),
		NewExtractCmd(holder),
		NewChatCmd(holder),
		NewSpeechCmd(holder),
		NewHistoryCmd(holder),
		NewBotCmd(holder),
		NewProvidersCmd(),
	)

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "YAML profile path (default $TLDR_CONFIG)")
	cmd.PersistentFlags().String("provider", "", "Model provider (anthropic|openai|xai|gemini|ollama|claude-code|codex)")
	cmd.PersistentFlags().String("model", "", "Model name for the provider")
	cmd.PersistentFlags().String("style", "", "Summary style (standard|brief|detailed|eli5)")
	cmd.PersistentFlags().String("language", "", "Write the summary in this language")
	cmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
}

// appHolder builds the app once flags are parsed. A preset app is kept.
type appHolder struct {
	app *app
}

func (h *appHolder) init(cmd *cobra.Command) error {
	if h.app != nil {
		return nil
	}

	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadFile(cmp.Or(configPath, os.Getenv("TLDR_CONFIG")))
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)

	// The bot logs JSON to stdout, the CLI keeps stdout for results.
	botMode := cmd.Name() == "bot"
	out := cmd.ErrOrStderr()
	if botMode {
		out = cmd.OutOrStdout()
	}

	log, err := newLogger(cfg.LogLevel, out, botMode)
	if err != nil {
		return err
	}

	h.app = newApp(cfg, log)

	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string, dst *string) {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			*dst = v
		}
	}

	set("provider", &cfg.Provider)
	set("model", &cfg.Model)
	set("style", &cfg.Style)
	set("language", &cfg.Language)
	set("log-level", &cfg.LogLevel)

	if v, _ := cmd.Flags().GetInt("max-input-chars"); v > 0 {
		cfg.MaxInputChars = v
	}
}

func NewProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the supported model providers",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range provider.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
