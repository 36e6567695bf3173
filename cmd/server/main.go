// Package main implements the entry point for the reportd server, the
// reporting subsystem's asynchronous execution core: a durable report
// job queue with a background worker, a single-flight report cache, and
// rate-limited interactive report endpoints.
package main

import (
	"context"
	"log"
)

// main is the entry point for the reportd server. All real work happens
// in run so initialization errors surface through a single exit path.
func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("reportd failed: %v", err)
	}
}
