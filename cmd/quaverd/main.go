// Package main is the entry point for the quaverd daemon.
// quaverd is a headless local-library audio player that integrates with OS
// media sessions and takes commands from clients over a unix socket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"quaver/internal/config"
	"quaver/internal/ipc"
	"quaver/internal/library"
	"quaver/internal/media"
	"quaver/internal/player"
)

// Version is set at build time via ldflags
var Version = "dev"

// Options holds daemon command-line options
type Options struct {
	SocketPath string
	ConfigDir  string
	Rescan     bool
	Verbose    bool
}

func main() {
	opts := parseFlags()

	if opts.Verbose {
		log.Printf("quaverd version %s starting...", Version)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func parseFlags() *Options {
	opts := &Options{}

	flag.StringVar(&opts.SocketPath, "socket", "", "IPC socket path (default: auto-generated based on UID)")
	flag.StringVar(&opts.ConfigDir, "config", "", "Configuration directory (default: ~/.config/quaverd)")
	flag.BoolVar(&opts.Rescan, "rescan", false, "Rebuild the library cache on startup")
	flag.BoolVar(&opts.Verbose, "verbose", false, "Log to stderr instead of the configured log file")
	flag.Parse()

	if opts.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		opts.ConfigDir = filepath.Join(homeDir, ".config", "quaverd")
	}

	if opts.SocketPath == "" {
		opts.SocketPath = fmt.Sprintf("/tmp/quaverd-%d.sock", os.Getuid())
	}

	return opts
}

func run(ctx context.Context, opts *Options) error {
	if err := os.MkdirAll(opts.ConfigDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configMgr := config.NewManager(opts.ConfigDir)
	if err := configMgr.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := configMgr.Get()

	if !opts.Verbose {
		closeLog, err := redirectLog(opts.ConfigDir, cfg.LogPath)
		if err != nil {
			return err
		}
		defer closeLog()
	}

	cache, err := loadLibrary(opts, cfg)
	if err != nil {
		return err
	}

	// Media session is best-effort; playback works without it.
	mediaSession, err := media.NewSession()
	if err != nil {
		log.Printf("[MEDIA] Warning: failed to initialize media session: %v", err)
		log.Printf("[MEDIA] Continuing without OS media integration")
		mediaSession = media.NewNoOpSession()
	} else {
		log.Printf("[MEDIA] Media session initialized successfully")
	}

	dev, err := player.OpenDevice(player.SignalSpec{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
	})
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}

	actor := player.New(cache, dev, mediaSession)

	done := make(chan struct{})
	go func() {
		actor.Run(ctx)
		close(done)
	}()

	server := ipc.NewServer(opts.SocketPath, actor, cache, configMgr)
	err = server.Start(ctx)

	<-done
	return err
}

// loadLibrary reads the persisted cache, scanning the configured roots when
// the cache is missing or a rescan was requested.
func loadLibrary(opts *Options, cfg *config.Config) (*library.Cache, error) {
	cachePath := cfg.CachePath
	if !filepath.IsAbs(cachePath) {
		cachePath = filepath.Join(opts.ConfigDir, cachePath)
	}

	if !opts.Rescan {
		cache, err := library.Load(cachePath)
		if err == nil {
			log.Printf("[LIBRARY] Loaded cache from %s", cachePath)
			return cache, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("[LIBRARY] Cache unreadable, rescanning: %v", err)
		}
	}

	cache, result := library.Scan(cfg.LibraryPaths, cfg.ExtensionSet())
	log.Printf("[LIBRARY] Scanned %d songs (%d failed) in %v",
		result.Scanned, result.Failed, result.Elapsed)

	if err := cache.Save(cachePath); err != nil {
		log.Printf("[LIBRARY] Warning: failed to persist cache: %v", err)
	}
	return cache, nil
}

// redirectLog points the standard logger at the configured log file.
func redirectLog(configDir, logPath string) (func(), error) {
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(configDir, logPath)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(io.Discard)
		f.Close()
	}, nil
}
