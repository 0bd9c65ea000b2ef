package remote

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/tiger/sim-replay-harness/internal/sim"
)

// EnvFactory constructs a fresh environment for one session. The handler
// closes whatever it constructs when the session ends.
type EnvFactory func(key string, frameskip int, repeatActionProbability float64) (sim.Environment, error)

// Handler serves environment sessions over WebSocket. Each connection owns
// exactly one environment instance for its lifetime.
type Handler struct {
	Factory  EnvFactory
	upgrader websocket.Upgrader
}

// NewHandler returns a session handler backed by the factory.
func NewHandler(factory EnvFactory) *Handler {
	return &Handler{
		Factory: factory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 16,
		},
	}
}

// ServeHTTP upgrades the connection and runs the session loop until the
// client closes or the connection drops.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("env")
	frameskip := 1
	if raw := r.URL.Query().Get("frameskip"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			http.Error(w, "frameskip must be a positive integer", http.StatusBadRequest)
			return
		}
		frameskip = v
	}
	sticky := 0.0
	if raw := r.URL.Query().Get("repeat_action_probability"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			http.Error(w, "repeat_action_probability must be within [0,1]", http.StatusBadRequest)
			return
		}
		sticky = v
	}

	env, err := h.Factory(key, frameskip, sticky)
	if err != nil {
		http.Error(w, fmt.Sprintf("construct environment: %v", err), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = env.Close()
		return
	}
	defer conn.Close()
	defer env.Close()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		resp, done := handleRequest(env, req)
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
		if done {
			return
		}
	}
}

func handleRequest(env sim.Environment, req Request) (Response, bool) {
	switch req.Op {
	case OpSpec:
		return Response{
			OK:          true,
			ActionCount: env.ActionCount(),
			ActionNames: env.ActionNames(),
		}, false
	case OpReset:
		if req.Seed == nil {
			return Response{Error: "reset requires a seed"}, false
		}
		obs, err := env.Reset(*req.Seed)
		if err != nil {
			return Response{Error: err.Error()}, false
		}
		return Response{OK: true, Obs: EncodeObservation(obs)}, false
	case OpStep:
		if req.Action == nil {
			return Response{Error: "step requires an action"}, false
		}
		res, err := env.Step(*req.Action)
		if err != nil {
			return Response{Error: err.Error()}, false
		}
		return Response{
			OK:         true,
			Obs:        EncodeObservation(res.Obs),
			Reward:     res.Reward,
			Terminated: res.Terminated,
			Truncated:  res.Truncated,
			Info:       res.Info,
		}, false
	case OpClose:
		return Response{OK: true}, true
	default:
		return Response{Error: fmt.Sprintf("unknown op %q", req.Op)}, false
	}
}
