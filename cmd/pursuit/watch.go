package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/pursuit/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var (
		url        string
		interval   time.Duration
		memoryPath string
		once       bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Monitor a running pursuit API and report run health",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = os.Getenv("PURSUIT_API_URL")
			}
			if url == "" {
				url = "http://localhost:8080"
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			observer := watch.NewObserver(url)
			if err := observer.WaitReady(ctx, time.Minute); err != nil {
				return err
			}

			w := &watch.Watcher{
				Observer:   observer,
				Interval:   interval,
				Memory:     &watch.CycleMemory{},
				MemoryPath: memoryPath,
			}
			if memoryPath != "" {
				w.Memory = watch.LoadMemory(memoryPath)
			}
			if once {
				snap, h, err := w.Cycle()
				if err != nil {
					return err
				}
				fmt.Printf("%s tick=%d frames=%d capture=%.2f avg_steps=%.1f\n",
					h.Level, snap.Status.Tick, snap.Status.FramesPublished, h.CaptureRate, h.AvgSteps)
				return nil
			}
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Print(w.Memory.Format())
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "API base URL (default $PURSUIT_API_URL or http://localhost:8080)")
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "time between observations")
	cmd.Flags().StringVar(&memoryPath, "memory", "", "JSON file keeping recent cycles across restarts")
	cmd.Flags().BoolVar(&once, "once", false, "observe once and exit")
	return cmd
}
