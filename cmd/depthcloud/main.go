// Package main is the depthcloud command.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"go.viam.com/depthcloud/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cli.NewApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		stop()
		log.Fatal(err)
	}
}
