package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/imfrisiv/mail-backend/services/keycheck"
)

func newCheckKeysCmd() *cobra.Command {
	var (
		asJSON bool
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "check-keys",
		Short: "Verify the configured LLM provider API keys",
		Long: `check-keys sends one lightweight request to each provider whose API key
is set and reports whether the key is usable. No retries are made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			checker := keycheck.NewChecker(cfg.Providers, nil, zap.NewNop())
			reports := checker.Check(cmd.Context())

			if err := writeReports(cmd.OutOrStdout(), reports, asJSON); err != nil {
				return err
			}
			if strict {
				return requireUsable(reports)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print reports as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero unless at least one key is usable and none is rejected")

	return cmd
}

func writeReports(w io.Writer, reports []keycheck.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tENV VAR\tSTATUS\tDETAIL")
	for _, r := range reports {
		detail := r.Message
		if r.HTTPStatus != 0 {
			detail = fmt.Sprintf("%s (HTTP %d)", detail, r.HTTPStatus)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Provider, r.EnvVar, r.Status, detail)
		for _, warning := range r.Warnings {
			fmt.Fprintf(tw, "\t\twarning\t%s\n", warning)
		}
	}
	return tw.Flush()
}

func requireUsable(reports []keycheck.Report) error {
	usable := 0
	for _, r := range reports {
		switch r.Status {
		case keycheck.StatusOK:
			usable++
		case keycheck.StatusUnauthorized:
			return fmt.Errorf("%s was rejected by %s", r.EnvVar, r.Provider)
		}
	}
	if usable == 0 {
		return errors.New("no usable provider key (set GOOGLE_GEMINI_API_KEY, OPENAI_API_KEY or PERPLEXITY_API_KEY)")
	}
	return nil
}
