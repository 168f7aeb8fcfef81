// Package scheduler runs the three recurring jobs:
// - daily data refresh for every tracked symbol, plus a fresh prediction
// - daily notification flush, preceded by the morning summary
// - weekly database backup
//
// Each job serializes its own runs; different jobs may overlap. The jobs
// are implemented in jobs.go.
package scheduler
