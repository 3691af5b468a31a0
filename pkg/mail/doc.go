// Package mail composes the CPRA opt-out letter and delivers it through an
// authenticated SMTP relay. One Session carries every message of a run, and
// relay replies are classified so a daily sending quota can be told apart
// from credential and transport failures.
package mail
