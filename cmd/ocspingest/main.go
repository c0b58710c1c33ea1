// Command ocspingest runs one CRL import against a configured ISSUER/CERT
// database. It is a thin wiring layer: argument parsing, dialect selection,
// and a single call into internal/ingest.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-hclog"
	_ "github.com/lib/pq"

	"github.com/dwabisch/ocspingest/internal/config"
	"github.com/dwabisch/ocspingest/internal/hashalgo"
	"github.com/dwabisch/ocspingest/internal/ingest"
	"github.com/dwabisch/ocspingest/internal/store"
)

func main() {
	var (
		baseDir    = flag.String("dir", ".", "directory holding ca.crt, ca.crl, and optional companions")
		dialect    = flag.String("dialect", os.Getenv("OCSPINGEST_DIALECT"), "mysql, postgres, or mssql")
		dsn        = flag.String("dsn", os.Getenv("OCSPINGEST_DSN"), "database/sql data source name")
		hashName   = flag.String("hash", "SHA-256", "digest algorithm for the CERT.HASH column")
		sweepStale = flag.Bool("sweep-stale", true, "delete stale CERT rows after a full CRL import")
		logLevel   = flag.String("log-level", "info", "hclog level name")
	)
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "ocspingest",
		Level: hclog.LevelFromString(*logLevel),
	})

	if err := run(logger, *baseDir, *dialect, *dsn, *hashName, *sweepStale); err != nil {
		logger.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(logger hclog.Logger, baseDir, dialectName, dsn, hashName string, sweepStale bool) error {
	if dsn == "" {
		return fmt.Errorf("ocspingest: -dsn (or OCSPINGEST_DSN) is required")
	}

	algo, err := hashalgo.ByName(hashName)
	if err != nil {
		return fmt.Errorf("ocspingest: %w", err)
	}

	backend, err := openBackend(dialectName, dsn)
	if err != nil {
		return fmt.Errorf("ocspingest: %w", err)
	}
	defer backend.Close()

	opts := ingest.Options{
		Logger:       logger,
		HashAlgo:     algo,
		ImportConfig: config.DefaultImportOptions(),
	}
	opts.ImportConfig.SweepStale = sweepStale

	ok, err := ingest.ImportCRLToOCSPDB(context.Background(), baseDir, backend, opts)
	if err != nil {
		return fmt.Errorf("ocspingest: %w", err)
	}
	if !ok {
		return fmt.Errorf("ocspingest: import did not complete")
	}
	return nil
}

// openBackend selects a concrete store.Dialect by name and opens a
// store.SQLStore against it, mirroring the driver-name-to-implementation
// switch idiom common throughout the corpus for pluggable backends.
func openBackend(dialectName, dsn string) (store.Backend, error) {
	db, err := sql.Open(driverName(dialectName), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database/sql connection: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	var dialect store.Dialect
	switch dialectName {
	case "mysql":
		dialect = store.MySQLDialect{}
	case "postgres":
		dialect = store.PostgresDialect{}
	case "mssql":
		dialect = store.MSSQLDialect{}
	default:
		return nil, fmt.Errorf("unknown dialect %q (want mysql, postgres, or mssql)", dialectName)
	}

	return store.Open(db, dialect)
}

func driverName(dialectName string) string {
	switch dialectName {
	case "mysql":
		return "mysql"
	case "postgres":
		return "postgres"
	case "mssql":
		return "sqlserver"
	default:
		return dialectName
	}
}
