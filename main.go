package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/roomserver/config"
	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/persistence"
	gamerpc "github.com/wfunc/roomserver/rpc"
	"github.com/wfunc/roomserver/server"
	"github.com/wfunc/roomserver/timer"
)

func main() {
	if err := run(); err != nil {
		logger.Log.Errorf("Server exited: %v", err)
		logger.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	// Load configuration
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	configPath, _ := flags.GetString("config")
	cfg, err := config.LoadConfig(configPath, flags)
	if err != nil {
		return err
	}

	// Initialize logger
	if err := logger.Init(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	var opts []server.Option

	// Initialize Database
	if cfg.Database.Driver != "" {
		db, err := persistence.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		logger.Log.Infof("Database connection successful (%s).", cfg.Database.Driver)
		opts = append(opts, server.WithDatabase(db, cfg.Database.AutoSaveInterval))
	}

	var health *gamerpc.HealthServer
	if cfg.RPC.HealthAddress != "" {
		health, err = gamerpc.NewHealthServer(cfg.RPC.HealthAddress)
		if err != nil {
			return fmt.Errorf("start health server: %w", err)
		}
		opts = append(opts, server.WithStatusHook(health.SetServing))
	}

	gameServer := server.NewGameServer(cfg.Server, opts...)

	var rpcServer *gamerpc.Server
	if cfg.RPC.Address != "" {
		rpcServer, err = gamerpc.NewServer(cfg.RPC.Address, gameServer)
		if err != nil {
			return fmt.Errorf("start RPC server: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.Addr())
	if err := gameServer.Start(); err != nil {
		return err
	}

	g.Go(func() error {
		select {
		case err := <-gameServer.Errors():
			return err
		case <-ctx.Done():
			return nil
		}
	})
	if rpcServer != nil {
		g.Go(rpcServer.Serve)
	}
	if health != nil {
		g.Go(health.Serve)
	}

	statsTask := timer.NewTask(cfg.Server.StatsInterval, func() {
		stats := gameServer.Stats()
		logger.Log.Infof("Server stats: players=%d connected=%d rooms=%d clients=%d",
			stats.PlayerCount, stats.ConnectedPlayers, stats.RoomCount, stats.ClientCount)
	})
	statsTask.Start()

	g.Go(func() error {
		<-ctx.Done()
		logger.Log.Info("Shutting down server...")
		statsTask.Stop()
		gameServer.Stop()
		if rpcServer != nil {
			rpcServer.Stop()
		}
		if health != nil {
			health.Stop()
		}
		return nil
	})

	return g.Wait()
}
