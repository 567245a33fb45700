// Package main is the entry point for the enrichment service daemon.
//
// The daemon owns no inbound enrichment API: submissions happen through
// the in-process manager. What it runs is the machinery around that
// manager — the coordinator and worker pool, the content-cache database,
// and the admin HTTP surface for probes, metrics, and introspection.
package main

import (
	"go.uber.org/fx"

	fxmodule "github.com/p2repo/cdenrich/internal/infra/fx"
)

func main() {
	app := fx.New(
		fxmodule.Module,
	)

	// Run blocks until SIGINT/SIGTERM, then executes the lifecycle stop
	// hooks: drain the admin server, stop the enrichment manager, close
	// the database pool.
	app.Run()
}
