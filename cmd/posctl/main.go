package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/retailpos/pos-backend/cmd/posctl/cli"
	"github.com/retailpos/pos-backend/internal/app"
)

const usage = `usage:
  posctl trigger <reconcile|low-stock> [-branch N]
  posctl queue`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if len(args) == 0 {
		return errors.New(usage)
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer jobsCLI.Close()

	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("trigger", flag.ContinueOnError)
		branch := fs.Int64("branch", 0, "branch to scan, 0 for all")
		if len(args) < 2 {
			return errors.New(usage)
		}
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		info, err := jobsCLI.Trigger(ctx, args[1], *branch)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "queue":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	default:
		return errors.New(usage)
	}
	return nil
}
