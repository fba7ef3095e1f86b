// Package main runs one storefront CLI command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	storefrontcmd "github.com/louisbranch/storefront/internal/cmd/storefront"
	"github.com/louisbranch/storefront/internal/platform/config"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: storefront [flags] <command>\n\n%s\nflags:\n", storefrontcmd.Usage())
		flag.PrintDefaults()
	}
	cfg, err := storefrontcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[STOREFRONT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := storefrontcmd.Run(ctx, cfg); err != nil {
		if errors.Is(err, storefrontcmd.ErrUsage) {
			flag.Usage()
		}
		log.Fatalf("storefront: %v", err)
	}
}
