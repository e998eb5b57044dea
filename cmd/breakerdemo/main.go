// Command breakerdemo runs a small HTTP server whose /flaky endpoint
// calls an unreliable simulated dependency through a circuit breaker,
// demonstrating the library end to end with Prometheus metrics and
// OpenTelemetry tracing wired in.
package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	configPath := flag.String("config", "", "path to a bconfig breaker preset file (optional)")
	tracingEndpoint := flag.String("tracing-endpoint", "", "OTLP gRPC endpoint (empty disables tracing)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("breakerdemo", version)
		os.Exit(0)
	}

	if err := run(*addr, *configPath, *tracingEndpoint); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
