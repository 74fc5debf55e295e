package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/pursuit/internal/persistence"
)

func newEpisodesCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "List stored episodes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = os.Getenv("PURSUIT_DB")
			}
			if dbPath == "" {
				return fmt.Errorf("no database: pass --db or set PURSUIT_DB")
			}
			db, err := persistence.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			return listEpisodes(db, limit)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite file written by run")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum episodes to show")
	return cmd
}

func listEpisodes(db *persistence.DB, limit int) error {
	eps, err := db.ListEpisodes(limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCENARIO\tTICKS\tCAPTURED\tREWARDS\tSTARTED\tTOOK")
	for _, ep := range eps {
		rewards, err := ep.Rewards()
		if err != nil {
			return fmt.Errorf("episode %s: %w", ep.ID, err)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
			shortID(ep.ID),
			ep.Scenario,
			humanize.Comma(int64(ep.Steps)),
			ep.Captured,
			formatRewards(rewards),
			humanize.Time(ep.StartedAt),
			(time.Duration(ep.DurationMs) * time.Millisecond).String(),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	rate, total, err := db.CaptureRate()
	if err != nil {
		return err
	}
	fmt.Printf("%s stored, capture rate %s%%\n", humanize.Comma(int64(total)), humanize.FtoaWithDigits(100*rate, 1))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatRewards(rs []float64) string {
	out := ""
	for i, r := range rs {
		if i > 0 {
			out += " "
		}
		out += humanize.FtoaWithDigits(r, 2)
	}
	return out
}
