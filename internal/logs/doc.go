// Package logs reads the daemon log file for the CLI.
//
// Tail returns the last N lines or everything after a byte offset, and can
// wait for new lines to arrive so `sermoncast logs --follow` polls with
// bounded memory. FilterJob narrows output to the entries of one processing
// job in either the console or the JSON log format.
package logs
