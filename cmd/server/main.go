// Command server runs the movebox room: one shared position broadcast to
// every connected WebSocket client.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/Tyrowin/movebox/internal/profile"
	"github.com/Tyrowin/movebox/internal/room"
	"github.com/Tyrowin/movebox/internal/server"
)

const version = "1.0.0"

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	cmd := &cli.Command{
		Name:    "movebox",
		Usage:   "single-room real-time position broadcast server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				Sources: cli.EnvVars("MOVEBOX_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "port",
				Usage: "listen address, overrides the config file and SERVER_PORT",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "include file and line in log output",
				Sources: cli.EnvVars("DEBUG"),
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if port := cmd.String("port"); port != "" {
		cfg.Port = port
	}
	*cfg = cfg.Sanitize()

	log.Printf("Starting movebox v%s", version)

	profiles, err := profile.Open(ctx, cfg.Profiles.Database, cfg.Profiles.TTL)
	if err != nil {
		return fmt.Errorf("open profile cache: %w", err)
	}
	defer profiles.Close()

	rm := room.New(room.WithSendBuffer(cfg.SendBuffer))
	srv := server.New(*cfg, rm, profiles)
	httpServer := server.CreateServer(cfg.Port, srv)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutdown signal received")
	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	return srv.Shutdown(cfg.ShutdownTimeout)
}

func loadConfig(path string) (*server.Config, error) {
	if path == "" {
		return server.NewConfigFromEnv(), nil
	}

	cfg, err := server.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log.Printf("Loaded configuration from %s", path)
	return cfg, nil
}
