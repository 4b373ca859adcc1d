package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivlev/slidefeed/internal/config"
	"github.com/ivlev/slidefeed/internal/logger"
	"github.com/ivlev/slidefeed/internal/server"
	"github.com/ivlev/slidefeed/internal/system"
)

func main() {
	configPtr := flag.String("config", "", "Path to slidefeed.yaml")
	inputPtr := flag.String("input", "", "Deck file, PDF, image directory or upstream URL to serve")
	addrPtr := flag.String("addr", "", "Listen address (overrides server.addr)")
	originsPtr := flag.String("origins", "*", "CORS allowed origins")
	publicPtr := flag.String("public", "", "Public feed URL to print and serve as a QR code (overrides server.public_url)")
	flag.Parse()

	cfg, err := config.Load(*configPtr)
	if err != nil {
		log.Fatalf("[-] Config: %v", err)
	}
	if *inputPtr != "" {
		if err := cfg.UseInput(*inputPtr); err != nil {
			log.Fatalf("[-] Input: %v", err)
		}
	}
	if *addrPtr != "" {
		cfg.Server.Addr = *addrPtr
	}
	if *publicPtr != "" {
		cfg.Server.PublicURL = *publicPtr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Config: %v", err)
	}

	appLogger := logger.NewZapLogger(cfg.App.LogFile, cfg.IsProduction())
	defer appLogger.Sync()

	system.RaiseFileLimit(4096, appLogger)

	srv := server.New(server.Options{
		Source:       cfg.NewSource(appLogger),
		ImagesDir:    cfg.Server.ImagesDir,
		AudioDir:     cfg.Server.AudioDir,
		VideosDir:    cfg.Server.VideosDir,
		PublicURL:    cfg.Server.PublicURL,
		Resources:    true,
		AllowOrigins: *originsPtr,
		Logger:       appLogger,
	})

	if cfg.Server.PublicURL != "" {
		if text, err := server.QRText(cfg.Server.PublicURL); err == nil {
			fmt.Printf("[*] Open the feed at %s\n%s", cfg.Server.PublicURL, text)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Run(cfg.Server.Addr) }()

	select {
	case err := <-errc:
		if err != nil {
			appLogger.Error("Main", "Server failed", map[string]interface{}{"error": err.Error()})
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Main", "Shutdown failed", map[string]interface{}{"error": err.Error()})
		}
		appLogger.Info("Main", "Server stopped", nil)
	}
}
