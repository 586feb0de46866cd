package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/isbndb-books/cmd/isbndb-books/commands"
	"github.com/Sternrassler/isbndb-books/internal/config"
)

func main() {
	config.LoadEnvFiles()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands.ExecuteContext(ctx)
}
