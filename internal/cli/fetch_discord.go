package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"modlog-archive/internal/discord"
	"modlog-archive/internal/logging"
)

func newFetchDiscordCmd() *cobra.Command {
	var (
		channelID string
		limit     int
		after     string
		before    string
	)

	cmd := &cobra.Command{
		Use:   "fetch-discord",
		Short: "Fetch a Discord channel's message history and ingest it",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.cleanup()

			if channelID == "" {
				channelID = rt.cfg.DiscordChannelID
			}
			if channelID == "" {
				return errors.New("provide --channel-id or set DISCORD_CHANNEL_ID")
			}

			rt.log.Info("fetching_channel",
				"channel_id", channelID,
				"token", logging.MaskToken(rt.cfg.DiscordToken),
			)

			fetcher := discord.NewHistoryFetcher(rt.log, rt.pipeline, rt.cfg.DiscordToken)
			summary, err := fetcher.FetchChannel(cmd.Context(), channelID, discord.FetchOptions{
				MaxMessages: limit,
				After:       after,
				Before:      before,
			})
			if err != nil {
				return err
			}

			fmt.Printf("fetched channel %s (%d events inserted)\n", channelID, summary.Inserted())
			printSummary(summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&channelID, "channel-id", "", "Discord channel ID (env: DISCORD_CHANNEL_ID)")
	cmd.Flags().IntVar(&limit, "limit", 2000, "Max messages to fetch")
	cmd.Flags().StringVar(&after, "after", "", "Only fetch messages after this message ID")
	cmd.Flags().StringVar(&before, "before", "", "Only fetch messages before this message ID")
	return cmd
}
