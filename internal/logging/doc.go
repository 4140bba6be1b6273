// Package logging provides file-based logging with rotation for the
// retrieval engine. The CLI writes JSON logs to ~/.epsteinai/logs/ on
// every run and mirrors them to stderr.
//
// The default level is info; the --debug flag lowers it to debug.
package logging
