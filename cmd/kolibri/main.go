// Command kolibri starts a kolibri stub server over a static catalogue
// file supplied on the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danslapman/kolibri-go/internal/api"
	"github.com/danslapman/kolibri-go/internal/catalogue"
	"github.com/danslapman/kolibri-go/internal/stub"
)

var version = "dev"

func main() {
	host := flag.String("host", "0.0.0.0", "address to listen on")
	port := flag.Int("port", 8080, "port to listen on")
	loglevel := flag.String("loglevel", "info", "log level: info or debug")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("kolibri", version)
		return
	}

	stub.Debug = *loglevel == "debug"

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: kolibri [flags] <catalogue.json>")
		os.Exit(2)
	}
	catalogueFile := flag.Arg(0)

	stubs, err := catalogue.Load(catalogueFile)
	if err != nil {
		log.Fatalf("loading catalogue: %v", err)
	}
	log.Printf("loaded %d stub(s) from %s", len(stubs), catalogueFile)

	srv := api.NewServer(api.Config{Host: *host, Port: *port}, stubs)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("server error: %v", err)
	case <-sigCh:
		log.Println("shutting down...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
}
