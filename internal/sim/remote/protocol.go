// Package remote fronts an out-of-process simulator over a JSON WebSocket
// protocol. One connection owns one environment instance; requests and
// responses alternate strictly, matching the synchronous step loop the
// harness runs.
package remote

import (
	"encoding/base64"
	"fmt"

	"github.com/tiger/sim-replay-harness/internal/sim"
)

// Protocol operations.
const (
	OpSpec  = "spec"
	OpReset = "reset"
	OpStep  = "step"
	OpClose = "close"
)

// Request is one client → server protocol message.
type Request struct {
	Op     string `json:"op"`
	Seed   *int64 `json:"seed,omitempty"`
	Action *int   `json:"action,omitempty"`
}

// Response is one server → client protocol message.
type Response struct {
	OK          bool              `json:"ok"`
	Error       string            `json:"error,omitempty"`
	Obs         *WireObservation  `json:"obs,omitempty"`
	Reward      float64           `json:"reward,omitempty"`
	Terminated  bool              `json:"terminated,omitempty"`
	Truncated   bool              `json:"truncated,omitempty"`
	Info        map[string]string `json:"info,omitempty"`
	ActionCount int               `json:"action_count,omitempty"`
	ActionNames []string          `json:"action_names,omitempty"`
}

// WireObservation carries an observation tensor as shape plus base64 bytes.
type WireObservation struct {
	Shape []int  `json:"shape"`
	Data  string `json:"data"`
}

// EncodeObservation converts an observation to its wire form.
func EncodeObservation(obs sim.Observation) *WireObservation {
	return &WireObservation{
		Shape: append([]int(nil), obs.Shape...),
		Data:  base64.StdEncoding.EncodeToString(obs.Data),
	}
}

// DecodeObservation converts a wire observation back to tensor form.
func DecodeObservation(w *WireObservation) (sim.Observation, error) {
	if w == nil {
		return sim.Observation{}, fmt.Errorf("response carries no observation")
	}
	data, err := base64.StdEncoding.DecodeString(w.Data)
	if err != nil {
		return sim.Observation{}, fmt.Errorf("decode observation bytes: %w", err)
	}
	return sim.Observation{Shape: append([]int(nil), w.Shape...), Data: data}, nil
}
