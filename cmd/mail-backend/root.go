package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/imfrisiv/mail-backend/app"
)

// rootCmd represents the base command of the mail backend
var rootCmd = &cobra.Command{
	Use:   "mail-backend",
	Short: "Webmail backend with multi-provider AI compose",
	Long: `mail-backend serves the webmail client API. Its compose endpoint asks
the configured LLM providers (Gemini, OpenAI, Perplexity) in priority order
and returns the first usable draft.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

// setVersion sets the version reported by the CLI and the status endpoint
func setVersion(v string) {
	app.Version = v
	rootCmd.Version = v
}

// execute runs the root command; serve is the default subcommand
func execute() {
	rootCmd.SetVersionTemplate(`{{printf "mail-backend version %s\n" .Version}}`)

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCheckKeysCmd())
	rootCmd.AddCommand(newVersionCmd())
}
