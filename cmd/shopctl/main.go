// main.go - admin control tool for the collector
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"golang.org/x/text/language"

	"shopsphere/internal"
	"shopsphere/internal/config"
	"shopsphere/internal/dashboard"
	"shopsphere/internal/events"
	"shopsphere/internal/jobs"
	"shopsphere/internal/seeder"
	"shopsphere/internal/transport"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	Name() string
	Description() string
	// NeedsApp reports whether the command works on the local database.
	NeedsApp() bool
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

var commands = []Command{
	&MigrateCommand{},
	&SeedCommand{},
	&ClearCommand{},
	&RetentionCommand{},
	&StatusCommand{},
	&ReportCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()
	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	var app *internal.Application
	if cmd.NeedsApp() {
		var err error
		app, err = internal.NewApp()
		if err != nil {
			log.Fatalf("Failed to initialize app: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}()
	}

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}
	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }
func (c *MigrateCommand) NeedsApp() bool      { return true }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// SeedCommand populates the DB with synthetic shopper sessions
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with sample shopper sessions" }
func (c *SeedCommand) NeedsApp() bool      { return true }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	sessions := fs.Int("sessions", 500, "number of sessions to generate")
	seed := fs.Uint64("seed", 0, "random seed (0 picks one)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s := seeder.NewSeeder(app.DBManager, slog.Default(), *sessions)
	if *seed != 0 {
		s.WithSeed(*seed)
	}
	result, err := s.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("Seeded %d sessions, %d events", result.Sessions, result.Events)
	return nil
}

// ClearCommand deletes every stored event
type ClearCommand struct{}

func (c *ClearCommand) Name() string        { return "clear" }
func (c *ClearCommand) Description() string { return "Deletes all stored events" }
func (c *ClearCommand) NeedsApp() bool      { return true }

func (c *ClearCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	db := app.DBManager.GetConnection()
	deleted, err := events.DeleteAllEvents(db, slog.Default())
	if err != nil {
		return err
	}
	if _, err := cache.PurgeAllCaches(db); err != nil {
		log.Printf("Warning: failed to purge caches: %v", err)
	}
	log.Printf("Deleted %d events", deleted)
	return nil
}

// RetentionCommand applies the retention policy now instead of waiting for
// the background job
type RetentionCommand struct{}

func (c *RetentionCommand) Name() string        { return "retention" }
func (c *RetentionCommand) Description() string { return "Deletes events older than the retention period" }
func (c *RetentionCommand) NeedsApp() bool      { return true }

func (c *RetentionCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	cfg := *config.GetConfig()
	fs := flag.NewFlagSet("retention", flag.ContinueOnError)
	fs.IntVar(&cfg.EventRetentionDays, "days", cfg.EventRetentionDays, "retention period in days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return jobs.NewRetentionJob(app.DBManager, slog.Default(), &cfg).Run(ctx)
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }
func (c *StatusCommand) NeedsApp() bool      { return true }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	db := app.DBManager.GetConnection()

	count, err := events.CountEvents(db)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Events: %d", count)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	stats := sqlDB.Stats()
	log.Printf("- Max Open Connections: %d", stats.MaxOpenConnections)
	log.Printf("- Open Connections: %d", stats.OpenConnections)
	log.Printf("- In Use: %d", stats.InUse)
	log.Printf("- Idle: %d", stats.Idle)
	return nil
}

// ReportCommand prints the admin dashboard fetched from a running collector
type ReportCommand struct{}

func (c *ReportCommand) Name() string        { return "report" }
func (c *ReportCommand) Description() string { return "Prints the dashboard from a running collector" }
func (c *ReportCommand) NeedsApp() bool      { return false }

func (c *ReportCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	cfg := config.GetConfig()
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	endpoint := fs.String("endpoint", cfg.TrackerEndpoint, "collector base URL")
	days := fs.Int("days", 7, "report window in days")
	sortBy := fs.String("sort", "clicks", "product column to sort by")
	ascending := fs.Bool("asc", false, "sort ascending")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := transport.New(transport.Options{
		Endpoint: *endpoint,
		Timeout:  cfg.RequestTimeout(),
	})
	to := time.Now()
	d := dashboard.NewLoader(client, slog.Default()).Load(ctx, to.AddDate(0, 0, -*days), to)

	sorter := dashboard.NewSorter(*sortBy, language.English)
	if *ascending {
		sorter.Toggle(*sortBy)
	}
	return dashboard.Render(os.Stdout, d, sorter)
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }
func (c *HelpCommand) NeedsApp() bool      { return false }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: shopctl [command] [args...]")
	fmt.Println("Available commands:")
	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
