// Command metadata extracts tag metadata from an image-path record list and
// writes the resulting table as delimited text.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cellpipe/internal/config"
	"cellpipe/internal/metadata"
	"cellpipe/internal/metrics"
)

func main() {
	var (
		cfgPath  string
		recPath  string
		outPath  string
		absent   string
		validate bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/sample.json", "pipeline config JSON path")
	flag.StringVar(&recPath, "records", "", "image-path record list (CSV)")
	flag.StringVar(&outPath, "out", "-", "output path, or - for stdout")
	flag.StringVar(&absent, "absent", "None", "marker for tags a record never produced")
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

	if p.Metadata == nil {
		fatalf("config has no metadata section")
	}
	if recPath == "" {
		fatalf("missing -records")
	}

	rules, err := metadata.CompileRules(*p.Metadata)
	if err != nil {
		fatalf("compile rules: %v", err)
	}

	rf, err := os.Open(recPath)
	if err != nil {
		fatalf("open records: %v", err)
	}
	records, err := metadata.ReadRecordList(rf)
	rf.Close()
	if err != nil {
		fatalf("read records: %v", err)
	}

	start := time.Now()
	table := metadata.BuildTable(records, rules)
	metrics.IncCounter("pipeline_records_total", float64(len(records)), metrics.Labels{"kind": "metadata"})
	metrics.ObserveHistogram("pipeline_step_duration_seconds", time.Since(start).Seconds(),
		metrics.Labels{"step": "metadata", "status": "ok"})

	out := os.Stdout
	if outPath != "-" {
		out, err = os.Create(outPath)
		if err != nil {
			fatalf("create output: %v", err)
		}
	}
	if err := writeTable(out, table, absent); err != nil {
		fatalf("write table: %v", err)
	}
	if outPath != "-" {
		if err := out.Close(); err != nil {
			fatalf("close output: %v", err)
		}
	}

	if *verbose {
		log.Printf("extracted metadata for %d records (%d columns) in %s",
			len(records), len(table.Columns), time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
