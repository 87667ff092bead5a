// Package main hosts the coachflow CLI entrypoint and command graph.
//
// Each stage (discover, poll, deliver) can be run once from the terminal, all
// three can be chained with `run`, and `serve` keeps them on their cron
// schedules. The inspection commands read the ledger directly and never touch
// the external services.
//
// Keep this package lean: behaviour belongs in internal packages, commands
// only resolve configuration and render results.
package main
