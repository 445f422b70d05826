package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/program-catalog/internal/invoke"
)

// newRunCmd creates the 'run' subcommand, one full pipeline invocation.
func newRunCmd() *cobra.Command {
	var event string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the full catalog pipeline once",
		Long: `Scrapes every configured listing page, enriches and archives each program,
publishes the catalog, sends the completion notification and loads the
published catalog into the item store. The {statusCode, body} response is
printed to stdout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInvocation(cmd, event, func(h *invoke.Handler) entryPoint { return h.Pipeline })
		},
	}
	cmd.Flags().StringVar(&event, "event", "{}", "invocation event payload (JSON)")
	return cmd
}

// newLoadCmd creates the 'load' subcommand, which only reloads the item store.
func newLoadCmd() *cobra.Command {
	var event string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Loads the published catalog into the item store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInvocation(cmd, event, func(h *invoke.Handler) entryPoint { return h.Load })
		},
	}
	cmd.Flags().StringVar(&event, "event", "{}", "invocation event payload (JSON)")
	return cmd
}

type entryPoint func(context.Context, json.RawMessage) invoke.Response

func runInvocation(cmd *cobra.Command, event string, pick func(*invoke.Handler) entryPoint) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if !json.Valid([]byte(event)) {
		return fmt.Errorf("--event must be valid JSON")
	}

	resp := pick(appInstance.GetHandler())(cmd.Context(), json.RawMessage(event))
	appInstance.GetLogger().Info("invocation finished",
		zap.String("command", cmd.Name()),
		zap.Int("status_code", resp.StatusCode),
	)
	if err := printResponse(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s invocation failed with status %d", cmd.Name(), resp.StatusCode)
	}
	return nil
}

func printResponse(w io.Writer, resp invoke.Response) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("print response: %w", err)
	}
	return nil
}
