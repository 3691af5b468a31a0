// Package metrics defines the Prometheus collectors for send runs and
// writes them in the node exporter textfile format.
package metrics
