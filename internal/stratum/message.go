package stratum

// request is an outgoing or incoming JSON-RPC call. Server-initiated
// notifications (mining.set_difficulty, mining.notify) arrive with
// ID == nil.
type request struct {
	ID     interface{}   `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// response answers a request previously sent by this client.
type response struct {
	ID     uint64      `json:"id"`
	Result interface{} `json:"result"`
	Error  *rpcError   `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	methodSubscribe     = "mining.subscribe"
	methodAuthorize     = "mining.authorize"
	methodNotify        = "mining.notify"
	methodSetDifficulty = "mining.set_difficulty"
	methodSubmit        = "mining.submit"
)

// requestKind tags an outstanding request by what it was asking for, so
// the response handler knows how to interpret an untyped JSON result.
type requestKind string

const (
	kindSubscribe requestKind = "subscribe"
	kindAuthorize requestKind = "authorize"
	kindSubmit    requestKind = "submit"
)

// pendingRequest records an outstanding request: its kind, which routes
// the response, and for mining.submit the job ID and nonce, which are
// logged when the share is rejected.
type pendingRequest struct {
	kind   requestKind
	jobID  string
	nonce  uint32
}
