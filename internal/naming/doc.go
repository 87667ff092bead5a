// Package naming parses free-form recording file names into a student name
// and session date and builds the canonical names used everywhere else.
//
// Every function here is pure: no I/O and the same output for the same input.
// Canonical recordings look like Jane_Doe_2024-03-01_AbCdEfGhIj.mp4 and their
// transcripts share the stem with a .txt extension.
package naming
