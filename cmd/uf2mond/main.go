// uf2mond: optional status daemon for uf2flash
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"uf2flash/internal/config"
	"uf2flash/internal/logging"
	"uf2flash/internal/statusserver"
)

// uf2mond serves its own empty Status independent of any uf2flash process —
// it's for callers that want a status endpoint running before and after a
// given flash, not fed by one. For status scoped to a single flash, run
// `uf2flash flash --status-addr` instead; it reports its own session inline.
func main() {
	addrFlag := flag.String("addr", "", "listen address (overrides UF2FLASH_MONITOR_ADDR)")
	flag.Parse()

	fmt.Println("uf2mond: UF2 flash status daemon")
	fmt.Println("=================================")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(logging.ParseLevel(cfg.LogLevel), os.Stderr)

	addr := cfg.MonitorAddr
	if *addrFlag != "" {
		addr = *addrFlag
	}

	status := &statusserver.Status{}
	srv := statusserver.New(addr, status)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	log.Info("listening on %s", srv.Addr())
	if err := srv.Run(ctx); err != nil {
		log.Error("server error: %v", err)
		os.Exit(1)
	}
	log.Info("stopped")
}
