// Package viz renders run summaries and traces in the terminal.
package viz
