package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"binroute/internal/api"
	"binroute/internal/buildinfo"
	"binroute/internal/config"
	"binroute/internal/metrics"
)

func main() {
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *version {
		fmt.Println(buildinfo.String())
		return
	}

	cfg := config.Load()
	cases, err := config.LoadCases(cfg.CasesPath)
	if err != nil {
		log.Fatalf("failed to load cases: %v", err)
	}
	metrics.RegisterDefault()

	srvDeps, err := api.NewServer(cfg, cases)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srvDeps.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// sync optimize requests and event streams hold the response open
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	worker := srvDeps.NewWebhookWorker()
	worker.Start()

	errc := make(chan error, 1)
	go func() {
		log.Printf("API listening on %s (%s, %d cases)", srv.Addr, buildinfo.String(), len(cases))
		errc <- srv.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Printf("shutdown: signal=%s", s)
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: http err=%v", err)
	}
	if err := srvDeps.Shutdown(ctx); err != nil {
		log.Printf("shutdown: background runs err=%v", err)
	}
	close(worker.Stop)
	if err := srvDeps.Close(); err != nil {
		log.Printf("shutdown: close err=%v", err)
	}
}
