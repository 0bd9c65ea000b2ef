package remote

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/tiger/sim-replay-harness/internal/sim"
)

// Options carry the step parameters forwarded to the serving side at
// session establishment.
type Options struct {
	Frameskip               int
	RepeatActionProbability float64
}

// Env is a sim.Environment backed by a remote simulator session.
type Env struct {
	conn        *websocket.Conn
	actionCount int
	actionNames []string
	closed      bool
}

// Dial establishes a session and fetches the remote action space. The
// returned environment must be closed exactly once.
func Dial(rawURL string, opts Options) (*Env, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse environment url: %w", err)
	}
	q := u.Query()
	if opts.Frameskip > 0 {
		q.Set("frameskip", strconv.Itoa(opts.Frameskip))
	}
	q.Set("repeat_action_probability", strconv.FormatFloat(opts.RepeatActionProbability, 'f', -1, 64))
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}

	env := &Env{conn: conn}
	resp, err := env.roundTrip(Request{Op: OpSpec})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if resp.ActionCount < 1 {
		_ = conn.Close()
		return nil, fmt.Errorf("remote reported action count %d", resp.ActionCount)
	}
	env.actionCount = resp.ActionCount
	env.actionNames = resp.ActionNames
	if len(env.actionNames) == 0 {
		env.actionNames = sim.FallbackActionNames(env.actionCount)
	}
	return env, nil
}

// Reset reseeds the remote environment and returns the initial observation.
func (e *Env) Reset(seed int64) (sim.Observation, error) {
	resp, err := e.roundTrip(Request{Op: OpReset, Seed: &seed})
	if err != nil {
		return sim.Observation{}, err
	}
	return DecodeObservation(resp.Obs)
}

// Step advances the remote environment by one action.
func (e *Env) Step(action int) (sim.StepResult, error) {
	resp, err := e.roundTrip(Request{Op: OpStep, Action: &action})
	if err != nil {
		return sim.StepResult{}, err
	}
	obs, err := DecodeObservation(resp.Obs)
	if err != nil {
		return sim.StepResult{}, err
	}
	return sim.StepResult{
		Obs:        obs,
		Reward:     resp.Reward,
		Terminated: resp.Terminated,
		Truncated:  resp.Truncated,
		Info:       resp.Info,
	}, nil
}

// Close ends the session. The close request is best effort; the connection
// is torn down regardless.
func (e *Env) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	_, _ = e.roundTrip(Request{Op: OpClose})
	if err := e.conn.Close(); err != nil {
		return fmt.Errorf("close environment connection: %w", err)
	}
	return nil
}

// ActionCount reports the remote discrete action-space cardinality.
func (e *Env) ActionCount() int { return e.actionCount }

// ActionNames reports the remote action vocabulary.
func (e *Env) ActionNames() []string {
	return append([]string(nil), e.actionNames...)
}

func (e *Env) roundTrip(req Request) (Response, error) {
	if err := e.conn.WriteJSON(req); err != nil {
		return Response{}, fmt.Errorf("send %s request: %w", req.Op, err)
	}
	var resp Response
	if err := e.conn.ReadJSON(&resp); err != nil {
		return Response{}, fmt.Errorf("read %s response: %w", req.Op, err)
	}
	if !resp.OK {
		return Response{}, fmt.Errorf("remote %s failed: %s", req.Op, resp.Error)
	}
	return resp, nil
}
