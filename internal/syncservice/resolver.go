package syncservice

import (
	"fmt"
	"time"
)

// Strategy is the deployment-wide conflict resolution policy. It is
// passed in explicitly at service construction, never read from ambient
// global state.
type Strategy string

const (
	// ServerWins discards the client change and leaves the row untouched.
	ServerWins Strategy = "server_wins"
	// ClientWins applies the client change regardless of the version gap.
	ClientWins Strategy = "client_wins"
	// NewestWins applies the client change only when its timestamp is
	// strictly newer than the server row's; ties keep the server row so
	// replays stay deterministic.
	NewestWins Strategy = "newest_wins"
)

// ParseStrategy validates a configured strategy value.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case ServerWins, ClientWins, NewestWins:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unsupported conflict strategy %q", s)
}

// Decision is the outcome of resolving one version conflict.
type Decision struct {
	ApplyClient bool
	// Resolution names the effective outcome for the audit trail and the
	// client response: server_wins or client_wins. NewestWins collapses
	// to whichever side won.
	Resolution Strategy
}

// Resolve decides a conflict between a server row and a stale client
// change. Pure function: no I/O, no clock reads. serverUpdated and
// clientUpdated are only consulted under NewestWins; a zero clientUpdated
// (client sent no timestamp) always loses.
func Resolve(strategy Strategy, serverUpdated, clientUpdated time.Time) Decision {
	switch strategy {
	case ClientWins:
		return Decision{ApplyClient: true, Resolution: ClientWins}
	case NewestWins:
		if !clientUpdated.IsZero() && clientUpdated.After(serverUpdated) {
			return Decision{ApplyClient: true, Resolution: ClientWins}
		}
		return Decision{ApplyClient: false, Resolution: ServerWins}
	default:
		return Decision{ApplyClient: false, Resolution: ServerWins}
	}
}
