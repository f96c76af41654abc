package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tigerroll/csvload/example/customer/internal/app"
	"github.com/tigerroll/csvload/example/customer/internal/resources"
	_ "github.com/tigerroll/csvload/pkg/batch/adapter/database/gorm/mysql"
	_ "github.com/tigerroll/csvload/pkg/batch/adapter/database/gorm/postgres"
	_ "github.com/tigerroll/csvload/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/csvload/pkg/batch/core/domain/model"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// main runs the customer job once. It exits with 1 when the job could not be
// launched or did not complete.
func main() {
	restart := flag.Bool("restart", false, "restart the latest job instance instead of starting a new one")
	configPath := flag.String("config", "", "YAML configuration file (defaults to the embedded application.yaml)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling for graceful shutdown: the job stops after its current chunk.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	cfg := resources.ApplicationYAML
	if *configPath != "" {
		b, err := os.ReadFile(*configPath)
		if err != nil {
			logger.Fatalf("Failed to read configuration file %s: %v", *configPath, err)
		}
		cfg = b
	}

	jobExecution, err := app.RunApplication(ctx, envFilePath, cfg, app.RunOptions{Restart: *restart})
	if err != nil {
		logger.Errorf("Application run failed: %v", err)
		os.Exit(1)
	}
	if jobExecution.Status != model.BatchStatusCompleted {
		logger.Errorf("Job finished with status %s. Failures: %v", jobExecution.Status, jobExecution.Failures)
		os.Exit(1)
	}
	os.Exit(0)
}
