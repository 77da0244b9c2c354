package construction

import (
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/cardano-community/rosetta-cardano-check/cardano"
)

const statsdNamespace = "rosetta_cardano_check."

// Metrics emits per-scenario counters and timings over statsd. With no
// address configured every call is a no-op, so callers never need to guard.
type Metrics struct {
	client statsd.ClientInterface
}

func NewMetrics(address string) (*Metrics, error) {
	if address == "" {
		return &Metrics{client: &statsd.NoOpClient{}}, nil
	}

	client, err := statsd.New(address, statsd.WithNamespace(statsdNamespace))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to reach statsd at %s", address)
	}

	return &Metrics{client: client}, nil
}

func (m *Metrics) ScenarioStarted(scenario string) {
	m.incr("scenario.started", scenario, "")
}

func (m *Metrics) ScenarioConfirmed(scenario string, constructionTime, confirmationTime time.Duration) {
	m.incr("scenario.confirmed", scenario, "")
	m.timing("construction.duration", scenario, constructionTime)
	m.timing("confirmation.duration", scenario, confirmationTime)
}

func (m *Metrics) ScenarioFailed(scenario string, err error) {
	m.incr("scenario.failed", scenario, failureStage(err))
}

func (m *Metrics) Close() {
	if err := m.client.Close(); err != nil {
		glog.Errorf("Unable to flush statsd client: %v", err)
	}
}

func (m *Metrics) incr(name, scenario, stage string) {
	tags := []string{"scenario:" + scenario}
	if stage != "" {
		tags = append(tags, "stage:"+stage)
	}
	if err := m.client.Incr(name, tags, 1); err != nil {
		glog.V(1).Infof("statsd %s: %v", name, err)
	}
}

func (m *Metrics) timing(name, scenario string, value time.Duration) {
	if err := m.client.Timing(name, value, []string{"scenario:" + scenario}, 1); err != nil {
		glog.V(1).Infof("statsd %s: %v", name, err)
	}
}

// failureStage labels a failed attempt for the failure counter, keyed off
// the taxonomy rather than the error text.
func failureStage(err error) string {
	var protocolErr *cardano.ProtocolError
	switch {
	case errors.As(err, &protocolErr):
		return protocolErr.State
	case errors.Is(err, cardano.ErrNoUtxosAvailable),
		errors.Is(err, cardano.ErrInsufficientFunds):
		return "selection"
	case errors.Is(err, cardano.ErrUnbalancedTransaction):
		return "build"
	case errors.Is(err, cardano.ErrFeeTooLow):
		return "fee"
	case errors.Is(err, cardano.ErrSigningFailed):
		return "sign"
	case errors.Is(err, cardano.ErrSubmissionRejected):
		return "submit"
	case errors.Is(err, cardano.ErrConfirmationTimeout):
		return "confirmation"
	}
	return "internal"
}
