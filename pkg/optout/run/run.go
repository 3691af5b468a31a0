// Package run drives one opt-out run: connect to the relay, send to each
// selected broker in id order with a fixed pause between messages, and stop
// with a resume point when the relay's daily limit is reached.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/optout-tools/optout/pkg/history"
	"github.com/optout-tools/optout/pkg/mail"
	"github.com/optout-tools/optout/pkg/metrics"
	"github.com/optout-tools/optout/pkg/optout/config"
	"github.com/optout-tools/optout/pkg/optout/directory"
	"github.com/optout-tools/optout/pkg/system"
)

type State string

const (
	StateIdle      State = "idle"
	StateSetup     State = "setup"
	StateSending   State = "sending"
	StateCompleted State = "completed"
	StatePaused    State = "paused"
	StateFailed    State = "failed"
)

// Plan is everything a run needs, resolved before the first send.
type Plan struct {
	RunID      string
	Profile    *config.Profile
	Credential string
	Targets    []directory.Broker
	// Range is the selection Targets came from; its end carries over into
	// the resume suggestion.
	Range  directory.Range
	DryRun bool
}

// Recorder persists accepted sends.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

type Controller struct {
	Connector mail.Connector
	// Pace is the minimum gap between two sends. Zero disables pacing.
	Pace     time.Duration
	Recorder Recorder
	Logger   *zap.SugaredLogger
	// Out receives dry-run previews.
	Out io.Writer
}

type Result struct {
	RunID     string
	State     State
	Attempted int
	Sent      int
	// LastSent is the id of the last broker the relay accepted, 0 if none.
	LastSent int
	// FailedID is the broker whose send ended the run.
	FailedID int
	// Resume is set only when the run was paused by the daily limit.
	Resume *directory.Range
	Err    error
}

func (c *Controller) logger() *zap.SugaredLogger {
	if c.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return c.Logger
}

// pause returns a gate that opens Pace after now, or nil when pacing is off.
// It is started once the relay has accepted a message, so the full gap sits
// between the end of one send and the start of the next.
func (c *Controller) pause() *rate.Limiter {
	if c.Pace <= 0 {
		return nil
	}
	gate := rate.NewLimiter(rate.Every(c.Pace), 1)
	gate.Allow()
	return gate
}

// Execute runs plan to a terminal state. It never retries: the first
// failure of any kind ends the run.
func (c *Controller) Execute(ctx context.Context, plan Plan) (res Result) {
	res = Result{RunID: plan.RunID, State: StateIdle}
	profile := plan.Profile.Name
	log := c.logger().With("run", plan.RunID, "profile", profile)
	defer func() {
		metrics.RunsFinished.WithLabelValues(profile, string(res.State)).Inc()
	}()

	res.State = StateSetup
	targets := append([]directory.Broker(nil), plan.Targets...)
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })

	if plan.DryRun {
		return c.preview(plan, targets, res)
	}
	if len(targets) == 0 {
		res.State = StateCompleted
		return res
	}

	log.Infow("Connecting to relay", "host", c.Connector.GetHost(), "port", c.Connector.GetPort(), "targets", len(targets))
	sess, err := c.Connector.Connect(ctx, mail.Credentials{
		Address:  plan.Profile.Sender(),
		Name:     plan.Profile.SenderName,
		Password: plan.Credential,
	})
	if err != nil {
		metrics.RelayConnectFailure.WithLabelValues(c.Connector.GetHost(), mail.Reason(err)).Inc()
		log.Errorw("Relay connection failed", "error", err)
		res.State = StateFailed
		res.Err = err
		return res
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Debugw("Closing relay session failed", "error", cerr)
		}
	}()

	res.State = StateSending
	var gate *rate.Limiter
	for _, b := range targets {
		fields := system.BrokerFields(b.ID, b.Name, b.Email)
		if err := ctx.Err(); err != nil {
			return c.interrupted(log, fields, res, err)
		}
		if gate != nil {
			if err := gate.Wait(ctx); err != nil {
				return c.interrupted(log, fields, res, err)
			}
		}

		msg, err := mail.ComposeOptOut(b.Email, letterParams(plan.Profile, b))
		if err != nil {
			res.State = StateFailed
			res.FailedID = b.ID
			res.Err = fmt.Errorf("compose message for broker %d: %w", b.ID, err)
			return res
		}

		res.Attempted++
		log.Debugw("Sending opt-out request", fields...)
		if err := sess.Send(ctx, msg); err != nil {
			metrics.MailSendFailure.WithLabelValues(profile, mail.Reason(err)).Inc()
			res.FailedID = b.ID
			res.Err = err
			if errors.Is(err, mail.ErrRateLimit) {
				res.State = StatePaused
				res.Resume = &directory.Range{Start: resumeStart(res, plan), End: plan.Range.End}
				log.Warnw("Relay daily sending limit reached", append(fields, "sent", res.Sent, "resume", res.Resume.String())...)
				return res
			}
			res.State = StateFailed
			log.Errorw("Send failed", append(fields, "error", err)...)
			return res
		}

		gate = c.pause()
		res.Sent++
		res.LastSent = b.ID
		metrics.MailSendSuccess.WithLabelValues(profile).Inc()
		metrics.LastSentBroker.WithLabelValues(profile).Set(float64(b.ID))
		log.Infow("Sent opt-out request", append(fields, "progress", fmt.Sprintf("%d/%d", res.Sent, len(targets)))...)

		if c.Recorder != nil {
			entry := history.Entry{RunID: plan.RunID, Profile: profile, BrokerID: b.ID, BrokerName: b.Name, Address: b.Email, SentAt: time.Now()}
			if err := c.Recorder.Record(ctx, entry); err != nil {
				log.Warnw("Could not record send in history", append(fields, "error", err)...)
			}
		}
	}

	res.State = StateCompleted
	log.Infow("Run completed", "sent", res.Sent)
	return res
}

func (c *Controller) interrupted(log *zap.SugaredLogger, fields []interface{}, res Result, err error) Result {
	log.Warnw("Run interrupted", append(fields, "error", err)...)
	res.State = StateFailed
	res.Err = err
	return res
}

func (c *Controller) preview(plan Plan, targets []directory.Broker, res Result) Result {
	out := c.Out
	if out == nil {
		out = io.Discard
	}
	for _, b := range targets {
		msg, err := mail.ComposeOptOut(b.Email, letterParams(plan.Profile, b))
		if err != nil {
			res.State = StateFailed
			res.FailedID = b.ID
			res.Err = err
			return res
		}
		res.Attempted++
		_, _ = fmt.Fprintf(out, "--- #%d %s <%s>\nSubject: %s\n\n%s\n", b.ID, b.Name, msg.To, msg.Subject, msg.Body)
	}
	res.State = StateCompleted
	return res
}

func resumeStart(res Result, plan Plan) int {
	if res.LastSent > 0 {
		return res.LastSent + 1
	}
	if plan.Range.Start > 0 {
		return plan.Range.Start
	}
	return 1
}

func letterParams(p *config.Profile, b directory.Broker) mail.OptOutParams {
	return mail.OptOutParams{
		BrokerName: b.Name,
		FullName:   p.Details.FullName,
		Address:    p.Details.Address,
		Email:      p.Details.Email,
		Phone:      p.Details.Phone,
	}
}
