// Package main implements a small demo that drives the lending engine against
// a seeded library database: it borrows a couple of books for a reader,
// extends one loan, and returns everything.
//
// Run the schema.sql and seed.sql files against the library database first.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openlibro/library-lending-go/example/config"
	"github.com/openlibro/library-lending-go/lending"
	"github.com/openlibro/library-lending-go/oteladapters"
	"github.com/openlibro/library-lending-go/postgresrepo"
)

type demoConfig struct {
	policyPath           string
	observabilityEnabled bool
	readerID             int
	staffID              int
	bookIDs              []int
}

func main() {
	cfg := parseFlags()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, aborting...", sig)
		cancel()
	}()

	pgxPool, poolErr := pgxpool.NewWithConfig(ctx, config.PostgresPGXPoolConfig())
	if poolErr != nil {
		log.Fatalf("Failed to create pgx pool: %v", poolErr)
	}
	defer pgxPool.Close()

	if pingErr := pgxPool.Ping(ctx); pingErr != nil {
		log.Fatalf("Failed to connect to database: %v", pingErr)
	}

	policy := loadPolicy(cfg.policyPath)

	store, storeErr := postgresrepo.NewStoreFromPGXPool(pgxPool)
	if storeErr != nil {
		log.Fatalf("Failed to create store: %v", storeErr)
	}

	var engineOptions []lending.EngineOption
	var serviceOptions []lending.ServiceOption

	if cfg.observabilityEnabled {
		contextualLogger := oteladapters.NewSlogBridgeLogger("library-lending-demo")
		engineOptions = append(engineOptions, lending.WithEngineLogger(contextualLogger))
		serviceOptions = append(serviceOptions, lending.WithServiceLogger(contextualLogger))
	}

	engine, engineErr := lending.NewEngine(store, store, store, store, policy, engineOptions...)
	if engineErr != nil {
		log.Fatalf("Failed to create engine: %v", engineErr)
	}

	service, serviceErr := lending.NewBorrowingService(engine, serviceOptions...)
	if serviceErr != nil {
		log.Fatalf("Failed to create borrowing service: %v", serviceErr)
	}

	runDemo(ctx, engine, service, cfg)
}

func runDemo(ctx context.Context, engine lending.Engine, service lending.BorrowingService, cfg demoConfig) {
	now := engine.Now()

	for _, bookID := range cfg.bookIDs {
		eligible, checkErr := engine.CanBorrowBook(ctx, cfg.readerID, bookID)
		if checkErr != nil {
			log.Fatalf("Eligibility check failed for book %d: %v", bookID, checkErr)
		}

		log.Printf("Reader %d may borrow book %d: %v", cfg.readerID, bookID, eligible)
	}

	var staffID *int
	if cfg.staffID > 0 {
		staffID = &cfg.staffID
	}

	loans, borrowErr := service.CreateBorrowings(ctx, cfg.readerID, cfg.bookIDs, now, 28, staffID)
	if borrowErr != nil {
		log.Fatalf("Borrowing failed after %d loans: %v", len(loans), borrowErr)
	}

	for _, loan := range loans {
		log.Printf("Created loan %d: book %d due %s", loan.ID, loan.BookID, loan.DueAt.Format("2006-01-02"))
	}

	extended, extendErr := service.ExtendAdvanced(ctx, loans[0].ID, 7)
	if extendErr != nil {
		log.Fatalf("Extension failed: %v", extendErr)
	}

	log.Printf("Extended loan %d: now due %s", extended.ID, extended.DueAt.Format("2006-01-02"))

	for _, loan := range loans {
		returned, returnErr := service.Return(ctx, loan.ID, engine.Now())
		if returnErr != nil {
			log.Fatalf("Return failed for loan %d: %v", loan.ID, returnErr)
		}

		log.Printf("Returned loan %d at %s", returned.ID, returned.ReturnedAt.Format("2006-01-02"))
	}

	log.Printf("Demo completed")
}

func loadPolicy(path string) lending.Policy {
	if path == "" {
		return lending.DefaultPolicy()
	}

	policy, err := lending.PolicyFromYAMLFile(path)
	if err != nil {
		log.Fatalf("Failed to load policy file: %v", err)
	}

	return policy
}

func parseFlags() demoConfig {
	var cfg demoConfig

	flag.StringVar(&cfg.policyPath, "policy", "", "path to a YAML policy file (defaults apply when empty)")
	flag.BoolVar(&cfg.observabilityEnabled, "observability", false, "enable OpenTelemetry logging")
	flag.IntVar(&cfg.readerID, "reader", 1, "id of the borrowing reader")
	flag.IntVar(&cfg.staffID, "staff", 0, "id of the processing staff member (0 for self-service)")
	flag.Parse()

	cfg.bookIDs = []int{1, 2}

	return cfg
}
