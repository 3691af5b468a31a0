package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every optout collector. It is separate from the default
// registry so textfile output only carries run metrics.
var Registry = prometheus.NewRegistry()

var (
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optout_mail_send_success_total",
		Help: "Total number of opt-out emails accepted by the relay",
	}, []string{"profile"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optout_mail_send_failure_total",
		Help: "Total number of opt-out emails rejected by the relay, by reason",
	}, []string{"profile", "reason"})
	RelayConnectFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optout_relay_connect_failure_total",
		Help: "Total number of failed relay connections, by reason",
	}, []string{"host", "reason"})
	DirectoryFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optout_directory_fetch_total",
		Help: "Total number of remote broker directory downloads, by result",
	}, []string{"result"})
	RunsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optout_runs_finished_total",
		Help: "Total number of send runs by terminal state",
	}, []string{"profile", "state"})
	LastSentBroker = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "optout_last_sent_broker_id",
		Help: "Sequence id of the last broker that was sent to successfully",
	}, []string{"profile"})
)

func init() {
	Registry.MustRegister(MailSendSuccess)
	Registry.MustRegister(MailSendFailure)
	Registry.MustRegister(RelayConnectFailure)
	Registry.MustRegister(DirectoryFetches)
	Registry.MustRegister(RunsFinished)
	Registry.MustRegister(LastSentBroker)
}

// WriteTextfile writes the registry in the node exporter textfile format.
// An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, Registry)
}
