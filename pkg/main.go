package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/log"
)

func main() {
	flag.Parse()

	server, cleanup, err := Setup()
	if err != nil {
		log.Fatalf("main start failed %v", err)
		return
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server.Run(ctx)
}
