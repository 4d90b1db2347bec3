// Package server implements the HTTP server that exposes the published
// deployment data: the raw JSON file, a parsed API view, the pipeline run
// history, and a health endpoint. It is read-only; the pipeline mutates
// the data, the server only serves it.
package server
