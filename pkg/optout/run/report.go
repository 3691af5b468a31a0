package run

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/optout-tools/optout/pkg/optout/directory"
)

var safeArg = regexp.MustCompile(`^[A-Za-z0-9_.@%+=:,/-]+$`)

func quoteArg(s string) string {
	if safeArg.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ResumeCommand renders the invocation that continues a paused run.
func ResumeCommand(program, profile string, r directory.Range) string {
	rng := fmt.Sprintf("%d-", r.Start)
	if !r.Open() {
		rng = fmt.Sprintf("%d-%d", r.Start, r.End)
	}
	return fmt.Sprintf("%s --profile %s --range %s", program, quoteArg(profile), rng)
}

const banner = "============================================================"

// Report prints the outcome of a run for the user. Failed runs are left to
// the caller's error handling.
func Report(w io.Writer, res Result, program, profile string) {
	switch res.State {
	case StateCompleted:
		_, _ = fmt.Fprintf(w, "Done. Sent %d opt-out request(s).\n", res.Sent)
	case StatePaused:
		_, _ = fmt.Fprintln(w, banner)
		_, _ = fmt.Fprintf(w, "The relay's daily sending limit was reached at broker #%d after %d message(s).\n", res.FailedID, res.Sent)
		_, _ = fmt.Fprintln(w, "Further sends are blocked for about 24 hours. To continue, run:")
		_, _ = fmt.Fprintln(w)
		if res.Resume != nil {
			_, _ = fmt.Fprintf(w, "  %s\n", ResumeCommand(program, profile, *res.Resume))
		}
		_, _ = fmt.Fprintln(w, banner)
	}
}
