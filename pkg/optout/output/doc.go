// Package output renders brokers, profiles and send history as aligned
// tables or as JSON/YAML documents.
package output
