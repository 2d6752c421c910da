package net

// RPCResponse carries the outcome of one request: a response object, an
// error, or both.
type RPCResponse struct {
	Response interface{}
	Error    error
}

// RPC pairs an incoming command with the channel its response must be sent
// on.
type RPC struct {
	Command  interface{}
	RespChan chan<- RPCResponse
}

// Respond sends the response back to the requester.
func (r *RPC) Respond(resp interface{}, err error) {
	r.RespChan <- RPCResponse{resp, err}
}
