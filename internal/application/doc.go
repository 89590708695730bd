// Package application wires the two processes of the system. New builds the
// configuration web server (storage, settings service, handlers, router and
// HTTP server); NewAnnouncer builds the announcer runner with its PID file,
// speech pipeline and optional metrics listener. Both keep the main packages
// focused on CLI parsing and signal handling.
package application
