package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/twin/internal/session"
	"github.com/matheus3301/twin/internal/tui/client"
)

type globals struct {
	session string
	json    bool
	timeout time.Duration
	client  *client.Client
}

func main() {
	g := &globals{}

	root := &cobra.Command{
		Use:           "twinctl",
		Short:         "Control a twin session daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			name := session.Resolve(g.session)
			if err := session.ValidateName(name); err != nil {
				return err
			}
			c, err := client.New(session.SocketPath(name))
			if err != nil {
				return fmt.Errorf("cannot connect to daemon for session %q: %w", name, err)
			}
			g.client = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.client != nil {
				_ = g.client.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&g.session, "session", "", "session name (overrides config default)")
	root.PersistentFlags().BoolVar(&g.json, "json", false, "output in JSON format")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 10*time.Second, "RPC timeout")

	root.AddCommand(
		statusCmd(g),
		transcriptCmd(g),
		olderCmd(g),
		sendCmd(g),
		rateCmd(g),
		feedbackCmd(g),
		searchCmd(g),
		previewCmd(g),
		reconnectCmd(g),
		watchCmd(g),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func (g *globals) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), g.timeout)
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
