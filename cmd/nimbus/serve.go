package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wdm0006/nimbus/internal/api"
	"github.com/wdm0006/nimbus/internal/filestore"
	"github.com/wdm0006/nimbus/internal/generate"
	"github.com/wdm0006/nimbus/internal/metrics"
	"github.com/wdm0006/nimbus/internal/service"
	"github.com/wdm0006/nimbus/internal/store"
)

var listenAddr string

func openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, store.Config{Driver: cfg.StoreDriver, DSN: cfg.StoreDSN})
}

func newGenerator() *generate.OllamaClient {
	return generate.NewOllamaClient(generate.Options{
		Host:             cfg.GeneratorHost,
		Model:            cfg.GeneratorModel,
		Timeout:          cfg.GeneratorTimeout(),
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		RetryBaseDelay:   time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		RetryMaxDelay:    time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the report and widget API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		files, err := filestore.New(cfg.UploadDir)
		if err != nil {
			return err
		}
		m, err := metrics.New()
		if err != nil {
			return err
		}

		widgets := service.NewWidgets(service.WidgetOptions{Store: st, Generator: newGenerator(), Logger: logger})
		if _, err := widgets.Seed(ctx); err != nil {
			return err
		}
		reports := service.NewReports(service.ReportOptions{
			Store:           st,
			Files:           files,
			Executor:        newExecutor(m),
			Runs:            m,
			ForecastHorizon: cfg.ForecastHorizon,
			Logger:          logger,
		})

		addr := cfg.ListenAddr
		if listenAddr != "" {
			addr = listenAddr
		}
		e := api.New(api.Options{Reports: reports, Widgets: widgets, Metrics: m.Handler(), Logger: logger})
		errc := make(chan error, 1)
		go func() {
			logger.Info("listening", "addr", addr, "store", cfg.StoreDriver, "uploads", files.Dir())
			errc <- e.Start(addr)
		}()

		select {
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides listen_addr)")
	rootCmd.AddCommand(serveCmd)
}
