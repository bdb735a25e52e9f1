package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/twin/internal/rpc"
)

func statusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			resp, err := g.client.GetStatus(ctx, &rpc.GetStatusRequest{})
			if err != nil {
				return err
			}
			if g.json {
				return outputJSON(resp)
			}
			fmt.Printf("Session:      %s\n", resp.Session)
			fmt.Printf("Status:       %s\n", resp.Status)
			fmt.Printf("Bot:          %s (%s)\n", resp.BotName, resp.BotCode)
			fmt.Printf("Conversation: %s\n", resp.ConvCode)
			fmt.Printf("Cached:       %d messages\n", resp.CachedMessages)
			fmt.Printf("Uptime:       %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
			if resp.LastSyncedAtMs > 0 {
				fmt.Printf("Last sync:    %s\n", time.UnixMilli(resp.LastSyncedAtMs).Format(time.DateTime))
			}
			if resp.Gate != "" {
				fmt.Printf("Gate:         %s\n", resp.Gate)
			}
			return nil
		},
	}
}

func transcriptCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "transcript",
		Short: "Print the current conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			resp, err := g.client.GetTranscript(ctx, &rpc.GetTranscriptRequest{})
			if err != nil {
				return err
			}
			if g.json {
				return outputJSON(resp)
			}
			fmt.Printf("# %s  v%d  %d/%d loaded\n\n", resp.BotName, resp.Version, resp.Cursor.Loaded, resp.Cursor.Total)
			for _, t := range resp.Turns {
				who := "you"
				if t.Role == "bot" {
					who = "bot"
				}
				header := fmt.Sprintf("[%d] %s", t.Index, who)
				if t.Rating > 0 {
					header += fmt.Sprintf(" (%d/5)", t.Rating)
				}
				if t.Pending {
					header += " ..."
				}
				fmt.Println(header)
				for _, e := range t.Entries {
					if e.Content != "" {
						fmt.Printf("    %s\n", strings.ReplaceAll(e.Content, "\n", "\n    "))
					}
					if e.Preview != nil && e.Preview.Title != "" {
						fmt.Printf("    > %s\n", e.Preview.Title)
					}
				}
			}
			if resp.Gate != "" {
				fmt.Printf("\nsending blocked (%s): %s\n", resp.Gate, resp.SubscribeURL)
			}
			return nil
		},
	}
}

func olderCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "older",
		Short: "Load the previous history page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			resp, err := g.client.LoadOlder(ctx, &rpc.LoadOlderRequest{SentinelVisible: true})
			if err != nil {
				return err
			}
			if g.json {
				return outputJSON(resp)
			}
			if !resp.Loaded {
				fmt.Printf("Nothing loaded: %s\n", resp.Reason)
				return nil
			}
			fmt.Printf("Loaded page %d: %d/%d messages\n", resp.Cursor.PageIndex, resp.Cursor.Loaded, resp.Cursor.Total)
			return nil
		},
	}
}

func sendCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "send <text>",
		Short: "Send a message to the bot",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			resp, err := g.client.SendText(ctx, &rpc.SendTextRequest{Text: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			if g.json {
				return outputJSON(resp)
			}
			if !resp.Accepted {
				return fmt.Errorf("sending blocked (%s), subscribe at %s", resp.Gate, resp.SubscribeURL)
			}
			fmt.Println("Sent.")
			return nil
		},
	}
}

func rateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rate <turn> <1-5>",
		Short: "Rate every message of a bot turn",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			turn, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid turn %q", args[0])
			}
			value, err := strconv.Atoi(args[1])
			if err != nil || value < 1 || value > 5 {
				return fmt.Errorf("rating must be 1-5, got %q", args[1])
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			resp, err := g.client.RateTurn(ctx, &rpc.RateTurnRequest{Turn: turn, Value: value})
			if err != nil {
				return err
			}
			if g.json {
				return outputJSON(resp)
			}
			fmt.Printf("Rated %d messages\n", resp.Rated)
			if len(resp.Failed) > 0 {
				return fmt.Errorf("%d messages failed: %s", len(resp.Failed), strings.Join(resp.Failed, ", "))
			}
			return nil
		},
	}
}

func feedbackCmd(g *globals) *cobra.Command {
	var desc string
	cmd := &cobra.Command{
		Use:   "feedback <turn> <text>",
		Short: "Send written feedback on a bot turn",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			turn, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid turn %q", args[0])
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			codes, err := turnCodes(ctx, g, turn)
			if err != nil {
				return err
			}
			resp, err := g.client.SendFeedback(ctx, &rpc.SendFeedbackRequest{
				Codes:       codes,
				Feedback:    strings.Join(args[1:], " "),
				Description: desc,
			})
			if err != nil {
				return err
			}
			if g.json {
				return outputJSON(resp)
			}
			fmt.Printf("Feedback sent for %d messages\n", resp.Sent)
			if len(resp.Failed) > 0 {
				return fmt.Errorf("%d messages failed: %s", len(resp.Failed), strings.Join(resp.Failed, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&desc, "description", "", "longer description")
	return cmd
}

func turnCodes(ctx context.Context, g *globals, turn int) ([]string, error) {
	resp, err := g.client.GetTranscript(ctx, &rpc.GetTranscriptRequest{})
	if err != nil {
		return nil, err
	}
	for _, t := range resp.Turns {
		if t.Index == turn {
			if len(t.Codes) == 0 {
				return nil, fmt.Errorf("turn %d has no server messages", turn)
			}
			return t.Codes, nil
		}
	}
	return nil, fmt.Errorf("no turn %d", turn)
}

func searchCmd(g *globals) *cobra.Command {
	var all bool
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search cached messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			resp, err := g.client.SearchMessages(ctx, &rpc.SearchMessagesRequest{
				Query: strings.Join(args, " "),
				Limit: limit,
				All:   all,
			})
			if err != nil {
				return err
			}
			if g.json {
				return outputJSON(resp)
			}
			for _, r := range resp.Results {
				ts := ""
				if r.SentAtMs > 0 {
					ts = time.UnixMilli(r.SentAtMs).Format(time.DateTime)
				}
				fmt.Printf("%-19s  %-4s  %s\n", ts, r.SenderType, r.Snippet)
			}
			fmt.Printf("%d results\n", len(resp.Results))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "search every cached conversation")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

func previewCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <text>",
		Short: "Resolve the link preview of the first URL in text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			resp, err := g.client.PreviewURL(ctx, &rpc.PreviewURLRequest{Text: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			if g.json {
				return outputJSON(resp)
			}
			if resp.URL == "" {
				fmt.Println("No URL found.")
				return nil
			}
			fmt.Printf("URL:   %s\n", resp.URL)
			if p := resp.Preview; p != nil {
				fmt.Printf("Title: %s\n", p.Title)
				fmt.Printf("Desc:  %s\n", p.Description)
				if p.ImageURL != "" {
					fmt.Printf("Image: %s\n", p.ImageURL)
				}
				if p.Embed != nil {
					fmt.Printf("Embed: %s %s\n", p.Embed.Platform, p.Embed.URL)
				}
			}
			return nil
		},
	}
}

func reconnectCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "reconnect",
		Short: "Re-bootstrap the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			resp, err := g.client.Reconnect(ctx, &rpc.ReconnectRequest{})
			if err != nil {
				return err
			}
			if g.json {
				return outputJSON(resp)
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

func watchCmd(g *globals) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream daemon events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, err := g.client.WatchEvents(cmd.Context(), &rpc.WatchEventsRequest{Prefix: prefix})
			if err != nil {
				return err
			}
			for {
				evt, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				if g.json {
					if err := outputJSON(evt); err != nil {
						return err
					}
					continue
				}
				fmt.Printf("%s  %-24s %s\n", time.UnixMilli(evt.OccurredAtMs).Format(time.TimeOnly), evt.Kind, evt.Payload)
			}
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "event kind prefixes, separated by |")
	return cmd
}
