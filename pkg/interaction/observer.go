package interaction

import (
	"time"

	"github.com/sousvide-ble/nano-go/pkg/command"
)

// Outcome classifies how an exchange ended.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeDecodeFailure  Outcome = "decode_failure"
	OutcomeNotConnected   Outcome = "not_connected"
	OutcomeConnectionLost Outcome = "connection_lost"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeCancelled      Outcome = "cancelled"
)

// Observer receives exchange statistics. Implementations must be safe for
// concurrent use and return quickly.
type Observer interface {
	// ObserveExchange is called once per Send after admission.
	ObserveExchange(cmd command.Command, outcome Outcome, d time.Duration)

	// ObserveChunk is called for every notification chunk. dropped is true
	// when no exchange was waiting for it.
	ObserveChunk(dropped bool)
}

type noopObserver struct{}

func (noopObserver) ObserveExchange(command.Command, Outcome, time.Duration) {}
func (noopObserver) ObserveChunk(bool) {}
