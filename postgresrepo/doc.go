// Package postgresrepo provides a PostgreSQL implementation of the lending
// repository interfaces.
//
// A single Store value implements CategoryRepository, BookRepository,
// ReaderRepository and LoanRepository, supporting multiple database adapters
// (pgx, sql.DB, sqlx) behind one interface.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Guarded loan writes with concurrency conflict detection
//   - JSONB-backed book category tags matched with the containment operator
//   - Configurable table names and optional logging
//
// Usage examples:
//
//	// Basic usage
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresrepo.NewStoreFromPGXPool(db)
//
//	// With custom table names and logging
//	store, _ := postgresrepo.NewStoreFromPGXPool(
//		db,
//		postgresrepo.WithTableNames(postgresrepo.TableNames{
//			Categories: "lib_categories",
//			Books:      "lib_books",
//			Readers:    "lib_readers",
//			Loans:      "lib_loans",
//		}),
//		postgresrepo.WithLogger(logger),
//	)
//
//	engine, _ := lending.NewEngine(store, store, store, store, lending.DefaultPolicy())
package postgresrepo
