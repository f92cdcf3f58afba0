// Command demo boots the catalog REST/GraphQL backend in-process, points a
// query.Client at its own loopback address, and drives a scripted scenario
// against it — a self-contained way to see the cache's normalization,
// deduplication, pagination, and GC behavior without a separate frontend.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/shashiranjanraj/qcache/internal/demo"
	"github.com/shashiranjanraj/qcache/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	handler, err := demo.Boot()
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	serverCtx, cancelServer := context.WithCancel(context.Background())
	defer cancelServer()

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- demo.Serve(serverCtx, addr, handler)
	}()

	// Give the listener a moment to come up before the scenario dials it.
	time.Sleep(100 * time.Millisecond)

	baseURL := "http://" + addr
	logger.Info("demo: server listening", "addr", baseURL)

	c := demo.NewClient(baseURL)
	scenarioErr := demo.RunScenario(context.Background(), c)

	cancelServer()
	serveErr := <-serveErrCh

	if scenarioErr != nil {
		return fmt.Errorf("scenario: %w", scenarioErr)
	}
	return serveErr
}
