package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/optout-tools/optout/pkg/history"
	"github.com/optout-tools/optout/pkg/optout/directory"
)

const maxNameWidth = 38

// WriteBrokerTable prints one row per broker followed by the total.
func WriteBrokerTable(w io.Writer, brokers []directory.Broker) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tEMAIL")
	for _, b := range brokers {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", b.ID, truncate(b.Name, maxNameWidth), b.Email)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "\nTotal brokers: %d\n", len(brokers))
}

// WriteProfileList prints profile names, marking the default one.
func WriteProfileList(w io.Writer, names []string, def string) {
	_, _ = fmt.Fprintln(w, "Available profiles:")
	for _, n := range names {
		marker := " "
		if n == def {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", marker, n)
	}
}

func WriteHistoryTable(w io.Writer, entries []history.Entry) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SENT\tPROFILE\tID\tBROKER\tADDRESS\tRUN")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			formatTime(e.SentAt), e.Profile, e.BrokerID, truncate(e.BrokerName, maxNameWidth), e.Address, shortID(e.RunID))
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}
