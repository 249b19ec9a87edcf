package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stockbot/internal/channel"
	"stockbot/internal/command"
	"stockbot/internal/dispatch"
)

func lookupCmd() *cobra.Command {
	var outDir string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "lookup [message]",
		Short: "Answer one message from the terminal",
		Long: `Runs a message through the same pipeline as chat and prints the replies.

  stockbot lookup "[[[AAPL]]] vs [[[MSFT,12]]]"
  stockbot lookup "[[[-TSLA]]] [[[?nvidia]]]" --out ./charts
  stockbot lookup "!stock AAPL"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			p, err := newPipeline(cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			loop := dispatch.NewLoop(dispatch.LoopConfig{Router: p.router, Logger: logger})

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return printResult(cmd.OutOrStdout(), loop.ProcessDirect(ctx, strings.Join(args, " ")), outDir)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write chart PNGs to this directory")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline")
	return cmd
}

func printResult(w io.Writer, res dispatch.Result, outDir string) error {
	if res.Text != "" {
		_, err := fmt.Fprintln(w, res.Text)
		return err
	}
	if len(res.Replies) == 0 {
		_, err := fmt.Fprintln(w, "no [[[...]]] patterns found")
		return err
	}
	return channel.PrintReplies(w, res.Replies, outDir)
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [message]",
		Short: "Show the commands a message contains, without fetching anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printCommands(cmd.OutOrStdout(), command.Parse(strings.Join(args, " ")))
			return nil
		},
	}
}

func printCommands(w io.Writer, cmds []command.Command) {
	if len(cmds) == 0 {
		fmt.Fprintln(w, "no commands")
		return
	}
	for i, c := range cmds {
		switch c.Kind {
		case command.KindSearch, command.KindEmptySearch:
			fmt.Fprintf(w, "%d. %-13s query=%q\n", i+1, c.Kind, c.Query)
		case command.KindMinimal:
			fmt.Fprintf(w, "%d. %-13s symbol=%s\n", i+1, c.Kind, c.Symbol)
		default:
			fmt.Fprintf(w, "%d. %-13s symbol=%s period=%dmo\n", i+1, c.Kind, c.Symbol, c.PeriodMonths)
		}
	}
}
