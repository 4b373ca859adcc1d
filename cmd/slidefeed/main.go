package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/ivlev/slidefeed/internal/audio"
	"github.com/ivlev/slidefeed/internal/caption"
	"github.com/ivlev/slidefeed/internal/config"
	"github.com/ivlev/slidefeed/internal/console"
	"github.com/ivlev/slidefeed/internal/engine"
	"github.com/ivlev/slidefeed/internal/logger"
	"github.com/ivlev/slidefeed/internal/player"
	"github.com/ivlev/slidefeed/internal/prefetch"
	"github.com/ivlev/slidefeed/internal/source"
	"github.com/ivlev/slidefeed/internal/system"
	"github.com/ivlev/slidefeed/internal/telemetry"
)

var buildVersion = "dev"

func main() {
	configPtr := flag.String("config", "", "Path to slidefeed.yaml (defaults and SLIDEFEED_* env when empty)")
	inputPtr := flag.String("input", "", "Deck file, PDF, image directory or http(s) URL (default: newest deck in input/)")
	heightPtr := flag.Float64("height", 0, "Slide height in pixels (overrides feed.height)")
	wordsPtr := flag.Bool("words", false, "Print every caption page change")
	flag.Parse()

	cfg, err := config.Load(*configPtr)
	if err != nil {
		log.Fatalf("[-] Config: %v", err)
	}
	cfg.App.BuildVersion = buildVersion

	if err := chooseInput(cfg, *inputPtr); err != nil {
		log.Fatalf("[-] Input: %v", err)
	}
	if *heightPtr > 0 {
		cfg.Feed.Height = *heightPtr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Config: %v", err)
	}

	// the prompt owns the terminal; logs go to the file only
	appLogger := logger.NewIsolatedLogger(cfg.App.LogFile)
	defer appLogger.Sync()

	resolver, err := audio.New(cfg.Storage, appLogger)
	if err != nil {
		log.Fatalf("[-] Storage: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var eng *engine.Engine
	audioPlayer := player.NewSimulated(player.Options{
		Root:     cfg.Playback.MediaRoot,
		Fallback: cfg.Playback.Fallback,
		Tick:     cfg.Playback.Tick,
		OnProgress: func(url string, ratio float64) {
			_ = eng.StreamProgress(url, ratio)
		},
		OnEnded: func(url string) {
			_ = eng.StreamEnded(url)
		},
		Logger: appLogger,
	})

	session := uuid.NewString()
	var onVisible engine.VisibleFunc = telemetry.LogHook(appLogger)
	if cfg.Telemetry.Publish {
		pubSub := telemetry.NewPubSub(appLogger)
		defer pubSub.Close()
		if err := telemetry.NewConsumer(pubSub, appLogger).Consume(ctx); err != nil {
			log.Fatalf("[-] Telemetry: %v", err)
		}
		onVisible = telemetry.NewPublisher(pubSub, session, appLogger).Visible
	}

	var onWord func(caption.WordChange)
	if *wordsPtr {
		words := color.New(color.FgMagenta)
		onWord = func(ch caption.WordChange) { words.Printf("    ~ %s\n", ch.Text) }
	}

	eng = engine.New(engine.Options{
		Source:   cfg.NewSource(appLogger),
		Resolver: resolver,
		Player:   audioPlayer,
		Loader:   prefetch.HTTPLoader{Timeout: cfg.Prefetch.Timeout, Root: cfg.Playback.MediaRoot},

		Pager:     cfg.Pager(),
		EndPolicy: cfg.EndPolicy(),
		Terminal:  cfg.Terminal(),

		SwipeThreshold: cfg.Feed.SwipeThreshold,
		Lookahead:      cfg.Prefetch.Lookahead,
		VideoPoolCap:   cfg.Prefetch.VideoPoolCap,
		SwipeBurst:     cfg.Prefetch.SwipeBurst,
		SwipeIdle:      cfg.Prefetch.SwipeIdle,
		SilentDwell:    cfg.Playback.SilentDwell,
		SilentTick:     cfg.Playback.Tick,
		Videos:         cfg.Prefetch.Videos,

		OnVisible:    onVisible,
		OnWordChange: onWord,
		OnAmbient:    func(url string) { color.Blue("    ambient -> %s", url) },
		Session:      session,
		Logger:       appLogger,
	})
	_ = eng.Resize(cfg.Feed.Height)

	fmt.Printf("[*] slidefeed %s, source %s, session %s\n", cfg.App.BuildVersion, cfg.Kind(), eng.Session())

	errc := make(chan error, 1)
	go func() { errc <- eng.Run(ctx) }()

	if err := console.New(eng, os.Stdout).Run(ctx, os.Stdin); err != nil {
		log.Printf("[!] Console: %v", err)
	}
	stop()
	if err := <-errc; err != nil {
		log.Fatalf("[-] Engine: %v", err)
	}
}

// chooseInput applies -input, or falls back to the newest deck in input/
// when the configured deck file does not exist.
func chooseInput(cfg *config.Config, input string) error {
	if input != "" {
		return cfg.UseInput(input)
	}
	if cfg.Kind() != source.KindFile {
		return nil
	}
	if _, err := os.Stat(cfg.Source.Path); err == nil {
		return nil
	}
	latest, err := system.FindLatestDeck("input")
	if err != nil {
		return fmt.Errorf("%s not found and no deck in input/: %w", cfg.Source.Path, err)
	}
	fmt.Printf("[*] Selected deck: %s\n", latest)
	return cfg.UseInput(latest)
}
