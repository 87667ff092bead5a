// Package services defines shared utilities consumed by the workflow stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, file names and student
//     keys for logging.
//   - Structured error markers plus the Wrap helper so callers classify
//     failures with errors.Is instead of inspecting message text.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
