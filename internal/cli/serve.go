package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bouthilx/track/internal/config"
	"github.com/bouthilx/track/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the storage over a JSON API",
	Long: `Start a read-only HTTP server exposing the storage contents.

Examples:
  track serve -s file://results.json            # Default address :8321
  track serve -s sqlite://results.db --addr :9000`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	addr := serveAddr
	if addr == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		addr = cfg.ServeAddr
	}

	srv := server.NewHTTPServer(server.Config{Addr: addr}, st)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logrus.Infof("serving on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		fmt.Println("\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
