// Package wire is the out-of-band channel between the management surface and
// a render node: newline-delimited JSON request/response over a direct TCP
// connection. The node is responsible for updating its own rows once it
// honors a request; the liveness monitor is the backstop when it does not.
package wire

import "github.com/google/uuid"

// Commands understood by the node-side server.
const (
	CmdKillTask = "kill_current_task"
	CmdShutdown = "shutdown"
	CmdPing     = "ping"
)

// Request asks a node to perform a command.
type Request struct {
	ID   string   `json:"id"`
	Cmd  string   `json:"cmd"`
	Args []string `json:"args,omitempty"`
}

// Response reports the outcome of a request. The Err polarity is inverted
// from convention: true means the command failed.
type Response struct {
	ID  string `json:"id,omitempty"`
	Msg string `json:"msg"`
	Err bool   `json:"err"`
}

// NewRequest builds a request with a fresh id.
func NewRequest(cmd string, args ...string) Request {
	return Request{ID: uuid.NewString(), Cmd: cmd, Args: args}
}

// OK builds a success response for the request.
func OK(req Request, msg string) Response {
	return Response{ID: req.ID, Msg: msg, Err: false}
}

// Fail builds an error response for the request.
func Fail(req Request, msg string) Response {
	return Response{ID: req.ID, Msg: msg, Err: true}
}
