// Package config loads, normalizes, and validates coachflow configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for secrets
// such as COACHFLOW_TRANSCRIPTION_API_KEY. The Config value is built once at
// startup and handed to each component's constructor; business logic never
// reads ambient settings.
//
// RequireStage reports the settings a specific stage needs, so a stage with a
// missing endpoint fails before any side effect.
package config
