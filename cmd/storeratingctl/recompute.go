package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/Clark-Hu/store-ratings/internal/service"
)

const storeIDFlag = "store-id"

var recomputeFlags = map[string]cobraflags.Flag{
	storeIDFlag: &cobraflags.StringFlag{
		Name:  storeIDFlag,
		Value: "",
		Usage: "Only rebuild this store; all stores when empty",
	},
}

func newRecomputeCommand() *cobra.Command {
	recomputeCmd := &cobra.Command{
		Use:   "recompute",
		Short: "Rebuild overall ratings from the stored ratings",
		Long: `Rebuild the overall rating of one store, or of every store, from its
individual ratings. Each store is repaired in its own transaction.`,
		Args: cobra.NoArgs,
		RunE: recomputeCommand,
	}
	cobraflags.RegisterMap(recomputeCmd, recomputeFlags)
	return recomputeCmd
}

func recomputeCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	st, log, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	defer log.Sync()

	svc := service.New(service.Deps{Tx: st, Reader: st.Pool(), Logger: log})
	out := cmd.OutOrStdout()

	raw := strings.TrimSpace(recomputeFlags[storeIDFlag].GetString())
	if raw == "" {
		n, err := svc.Ratings.RecomputeAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "recomputed %d store(s)\n", n)
		return nil
	}

	storeID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || storeID <= 0 {
		return fmt.Errorf("--%s must be a positive integer", storeIDFlag)
	}
	overall, err := svc.Ratings.RecomputeStore(ctx, storeID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "store %d overall rating: %d\n", storeID, overall)
	return nil
}
