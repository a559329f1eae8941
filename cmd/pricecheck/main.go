package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"SonicTrader/internal/service/pyth"
	"SonicTrader/internal/usecase"
	"SonicTrader/pkg/config"
	xhttp "SonicTrader/pkg/http"
	"SonicTrader/pkg/metrics"
	"SonicTrader/pkg/util"

	"github.com/urfave/cli/v3"
)

func checkAction(ctx context.Context, cmd *cli.Command) error {
	ids := util.SplitList(cmd.StringSlice("id")...)
	httpURL := cmd.String("url")

	if path := cmd.String("config"); path != "" {
		cfg, err := config.LoadWithEnv(path)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			ids = cfg.FeedIDs()
		}
		if !cmd.IsSet("url") {
			httpURL = cfg.Oracle.HTTPURL
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("no feed ids: pass --id or --config")
	}

	client := pyth.New("", httpURL, pyth.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cmd.Duration("timeout")))))
	feed := usecase.NewPriceFeedClient(client, pyth.NewCodec(), metrics.Nop{})

	updates, err := feed.Latest(ctx, ids)
	if err != nil {
		return fmt.Errorf("latest prices: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FEED\tPRICE\tCONFIDENCE\tPUBLISHED")
	for _, u := range updates {
		fmt.Fprintf(w, "%s\t%g\t%g\t%s\n", u.FeedID, u.Price, u.Confidence, time.Unix(u.Timestamp, 0).UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func main() {
	cmd := &cli.Command{
		Name:  "pricecheck",
		Usage: "Print the latest oracle prices for a set of feeds",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "id",
				Aliases: []string{"i"},
				Usage:   "Feed id, repeatable or comma separated",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Read feed ids and the oracle URL from this config file",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Hermes REST base URL",
				Value: "https://hermes.pyth.network",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: checkAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
