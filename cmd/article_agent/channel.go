package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/article-agent/internal/observability"
	"github.com/jonathan/article-agent/internal/types"
)

var channelListAll bool

var channelCmd = &cobra.Command{
	Use:   "channel",
	Short: "Manage channels",
}

var channelSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the channels and brand assets declared in the config",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		created, err := a.seed(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d channel(s) created, %d asset(s) written\n", created, len(a.cfg.Assets))
		return nil
	},
}

var channelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List channels",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		channels, err := a.catalog.Store().ListChannels(cmd.Context(), channelListAll)
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintChannels(channels)
		return nil
	},
}

var channelShowCmd = &cobra.Command{
	Use:   "show <id|slug>",
	Short: "Show a channel and its style samples",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ch, err := a.catalog.ResolveChannel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if ch == nil {
			return &types.RecordNotFoundError{Kind: "channel", Key: args[0]}
		}
		samples, err := a.catalog.Store().ListSamples(cmd.Context(), ch.ID)
		if err != nil {
			return err
		}

		p := observability.NewPrinter(cmd.OutOrStdout())
		p.PrintChannels([]types.Channel{*ch})
		for i := range samples {
			p.PrintSample(&samples[i])
		}
		return nil
	},
}

func init() {
	channelListCmd.Flags().BoolVar(&channelListAll, "all", false, "Include inactive channels")

	channelCmd.AddCommand(channelSeedCmd, channelListCmd, channelShowCmd)
	rootCmd.AddCommand(channelCmd)
}
