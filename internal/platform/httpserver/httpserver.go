// Package httpserver builds the process listener for the transfer API.
package httpserver

import (
	"net/http"
	"time"
)

// New returns the API server for addr. The timeouts bound slow
// clients; handler deadlines belong to the router middleware.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}
}
