// Command export writes measurement tables from the configured store to
// delimited text files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cellpipe/internal/config"
	"cellpipe/internal/export"
	"cellpipe/internal/metrics"
	"cellpipe/internal/metrics/datadog"
	"cellpipe/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "cellpipe/internal/storage/all"
)

// main loads the pipeline config, optionally initializes a metrics backend,
// opens the measurement store, and runs the export.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/sample.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (datadog, none)")
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

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		// Buffers metrics and submits periodically, plus one final submit on
		// Close(). Long exports get a real time series instead of a single
		// spike at exit.
		jobName := p.Job
		if jobName == "" {
			jobName = "cellpipe_job"
		}
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    jobName,
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
			metrics.SetBackend(b)

			// Close() stops the periodic flush loop and performs a final
			// Flush(). This is the clean shutdown path.
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	store, err := storage.Open(ctx, p.Export.Store)
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer store.Close()

	opt, err := export.OptionsFromConfig(*p.Export)
	if err != nil {
		fatalf("export options: %v", err)
	}

	groups := export.GroupsFromConfig(p.Export.Groups)
	written, err := export.New(store, opt).Run(ctx, groups)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ObserveHistogram("pipeline_step_duration_seconds", time.Since(start).Seconds(),
		metrics.Labels{"step": "export", "status": status})

	for _, f := range written {
		log.Printf("wrote %s", f)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed %d files in %s", len(written), time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
