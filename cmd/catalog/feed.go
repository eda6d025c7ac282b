package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"locallibrary/internal/config"
	"locallibrary/pkg/events"
)

var feedCount int64

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Print the most recent catalog changes, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.LoadFeed)
		if err != nil {
			return err
		}
		feed, err := events.NewRedisFeed(events.RedisFeedConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.EventStream,
		})
		if err != nil {
			return err
		}
		defer feed.Close()

		recent, err := feed.Recent(cmd.Context(), feedCount)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, ev := range recent {
			if err := enc.Encode(ev); err != nil {
				return fmt.Errorf("write event: %w", err)
			}
		}
		return nil
	},
}

func init() {
	feedCmd.Flags().Int64VarP(&feedCount, "count", "n", 20, "Number of events to print")
}
