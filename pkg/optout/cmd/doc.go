// Package cmd implements the cobra command tree for the optout CLI: the
// send run on the root command, broker and profile listings, send history,
// keyring credential storage, version and shell completion.
package cmd
