package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/s1natex/todo-master/internal/config"
	"github.com/s1natex/todo-master/internal/tui"
)

func main() {
	cfg := config.LoadClient()

	// Root flags override the environment
	apiURL := flag.String("api", cfg.APIURL, "base URL of the task API (env TASKS_API_URL)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tui.Run(ctx, *apiURL); err != nil {
		fmt.Fprintln(os.Stderr, "taskboard:", err)
		stop()
		os.Exit(1)
	}
}
