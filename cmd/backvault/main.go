package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/backvault/internal/cache"
	"github.com/dropDatabas3/backvault/internal/config"
	"github.com/dropDatabas3/backvault/internal/http/server"
	"github.com/dropDatabas3/backvault/internal/observability/logger"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "backvault",
		Short:   "Conecta el dashboard de backups con los proveedores de almacenamiento",
		Version: version,
	}
	root.AddCommand(serveCmd(), keygenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			// .env es opcional; en prod las vars vienen del entorno real.
			_ = godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.App.LogLevel,
				ServiceName: cfg.App.Name,
				Version:     version,
			})
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := server.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = app.Store.Close() }()

			// El driver postgres no expira solo; barrido periódico.
			if sweeper, ok := app.Store.(cache.Sweeper); ok {
				go runSweeper(ctx, sweeper)
			}

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      app.Handler,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.L().Info("servidor escuchando",
					logger.Component("main"),
					logger.String("addr", cfg.Server.Addr),
					logger.String("env", cfg.App.Env))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.L().Info("apagando servidor", logger.Component("main"))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "ruta del archivo de configuración")
	return cmd
}

func runSweeper(ctx context.Context, sweeper cache.Sweeper) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sweeper.Sweep(ctx); err != nil {
				logger.L().Warn("barrido de entradas vencidas falló",
					logger.Component("main"), logger.Err(err))
			}
		}
	}
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Genera una clave apta para ENCRYPTION_KEY o SESSION_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := make([]byte, 32)
			if _, err := rand.Read(raw); err != nil {
				return err
			}
			fmt.Println(base64.StdEncoding.EncodeToString(raw))
			return nil
		},
	}
}
