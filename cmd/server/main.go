package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/microkernel-project/microkernel/internal/config"
	"github.com/microkernel-project/microkernel/internal/server"
)

func main() {
	port := flag.String("port", "", "Override server port")
	policy := flag.String("policy", "", "Override scheduling policy (round_robin, priority, fifo)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *policy != "" {
		cfg.Scheduler.Policy = *policy
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Println("shutting down")
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
