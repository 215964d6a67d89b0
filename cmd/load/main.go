// Command load ingests measurements from long-form CSV into a SQLite
// measurement store, so runs produced elsewhere can be exported here.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cellpipe/internal/config"
	"cellpipe/internal/storage/sqlite"
)

func main() {
	var (
		cfgPath  string
		inPath   string
		validate bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/sample.json", "pipeline config JSON path")
	flag.StringVar(&inPath, "in", "", "measurements CSV (entity,record,feature,value)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	if p.Export == nil {
		fatalf("config has no export section")
	}
	if p.Export.Store.Kind != "sqlite" {
		fatalf("load only writes sqlite stores, got kind %q", p.Export.Store.Kind)
	}
	if inPath == "" {
		fatalf("missing -in")
	}

	ctx := context.Background()
	start := time.Now()

	store, err := sqlite.Open(ctx, p.Export.Store.DSN)
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		fatalf("create schema: %v", err)
	}

	f, err := os.Open(inPath)
	if err != nil {
		fatalf("open input: %v", err)
	}
	defer f.Close()

	n, err := loadCSV(ctx, store, f)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("loaded %d measurements into %s in %s",
			n, p.Export.Store.DSN, time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
