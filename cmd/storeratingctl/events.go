package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/Clark-Hu/store-ratings/internal/events"
	"github.com/Clark-Hu/store-ratings/internal/logger"
)

const (
	redisAddrFlag = "redis-addr"
	channelFlag   = "channel"
	logModeFlag   = "log-mode"
)

var tailFlags = map[string]cobraflags.Flag{
	redisAddrFlag: &cobraflags.StringFlag{
		Name:  redisAddrFlag,
		Value: os.Getenv("REDIS_ADDR"),
		Usage: "Redis address to subscribe on (defaults to $REDIS_ADDR)",
	},
	channelFlag: &cobraflags.StringFlag{
		Name:  channelFlag,
		Value: "store-ratings.events",
		Usage: "Pub/sub channel carrying rating events",
	},
	logModeFlag: &cobraflags.StringFlag{
		Name:  logModeFlag,
		Value: "dev",
		Usage: "Logger mode (dev or prod)",
	},
}

func newEventsCommand() *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect published rating events",
	}
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print rating events from Redis as JSON lines until interrupted",
		Args:  cobra.NoArgs,
		RunE:  tailCommand,
	}
	cobraflags.RegisterMap(tailCmd, tailFlags)
	eventsCmd.AddCommand(tailCmd)
	return eventsCmd
}

func tailCommand(cmd *cobra.Command, _ []string) error {
	addr := tailFlags[redisAddrFlag].GetString()
	if addr == "" {
		return fmt.Errorf("--%s is required", redisAddrFlag)
	}
	log, err := logger.New(tailFlags[logModeFlag].GetString())
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	sub, err := events.NewRedisPublisher(ctx, addr, tailFlags[channelFlag].GetString(), log)
	if err != nil {
		return err
	}
	defer sub.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	return sub.Subscribe(ctx, func(event events.RatingChanged) {
		if err := enc.Encode(event); err != nil {
			log.Warn("write event", "error", err)
		}
	})
}
