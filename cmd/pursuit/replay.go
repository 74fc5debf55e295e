package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/pursuit/internal/agents"
	"github.com/talgya/pursuit/internal/persistence/trajectory"
	"github.com/talgya/pursuit/internal/render"
)

func newReplayCmd() *cobra.Command {
	var (
		file    string
		dir     string
		episode string
		draw    bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Summarise or redraw recorded trajectories",
		RunE: func(cmd *cobra.Command, args []string) error {
			files := []string{file}
			if file == "" {
				if dir == "" {
					return fmt.Errorf("pass --file or --dir")
				}
				var err error
				if files, err = trajectory.Files(dir); err != nil {
					return err
				}
			}
			for _, f := range files {
				ts, err := trajectory.ReadFile(f)
				if err != nil {
					return err
				}
				if err := replay(ts, episode, draw); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "trajectory file (traj-*.jsonl.zst)")
	cmd.Flags().StringVar(&dir, "dir", "", "replay every trajectory file in a directory")
	cmd.Flags().StringVar(&episode, "episode", "", "only this episode id")
	cmd.Flags().BoolVar(&draw, "render", false, "draw every recorded tick")
	return cmd
}

type episodeTally struct {
	id       string
	ticks    int
	terminal bool
	captured bool
	rewards  []float64
}

func replay(ts []trajectory.Transition, only string, draw bool) error {
	var canvas *render.ASCII
	if draw {
		canvas = render.NewASCII(os.Stdout)
	}

	var order []string
	tallies := make(map[string]*episodeTally)
	for _, t := range ts {
		if only != "" && t.Episode != only {
			continue
		}
		tally, ok := tallies[t.Episode]
		if !ok {
			tally = &episodeTally{id: t.Episode, rewards: make([]float64, len(t.Rewards))}
			tallies[t.Episode] = tally
			order = append(order, t.Episode)
		}
		tally.ticks++
		tally.terminal = tally.terminal || t.Terminal
		tally.captured = tally.captured || t.Captured
		for i, r := range t.Rewards {
			if i < len(tally.rewards) {
				tally.rewards[i] += r
			}
		}

		if canvas != nil {
			canvas.Begin(t.Board, t.Tick)
			for i, pos := range t.Position {
				role := agents.RoleTarget
				if i < len(t.Roles) {
					role = t.Roles[i]
				}
				canvas.Plot(pos, 1, agents.GlyphFor(role))
			}
			if err := canvas.Flush(); err != nil {
				return err
			}
		}
	}

	for _, id := range order {
		tally := tallies[id]
		fmt.Printf("episode %s: %d ticks, terminal=%t captured=%t rewards=[%s]\n",
			tally.id, tally.ticks, tally.terminal, tally.captured, formatRewards(tally.rewards))
	}
	return nil
}
