// Package main provides a CLI for offline administration of the auth
// store: listing users, creating system users, removing users, and issuing
// refresh tokens.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	authctl "github.com/emberhome/ember/internal/cmd/authctl"
)

func main() {
	cfg, err := authctl.ParseConfig(flag.CommandLine, os.Args[1:], func(key string) (string, bool) {
		value, ok := os.LookupEnv(key)
		return value, ok
	})
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[AUTHCTL] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := authctl.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("failed to run: %v", err)
	}
}
