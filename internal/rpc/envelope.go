package rpc

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/Huzefa-Jadliwala/invox-client/internal/common/errors"
)

// ProtocolVersion is the JSON-RPC version sent on every request.
const ProtocolVersion = "2.0"

// DefaultID is the request id used unless sequential ids are enabled.
const DefaultID int64 = 1

// Envelope is an outgoing JSON-RPC request.
type Envelope struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int64       `json:"id"`
}

// NewEnvelope builds a request envelope. Nil params are sent as {}.
func NewEnvelope(method string, params interface{}, id int64) Envelope {
	if params == nil {
		params = struct{}{}
	}
	return Envelope{
		JSONRPC: ProtocolVersion,
		Method:  method,
		Params:  params,
		ID:      id,
	}
}

// response is an incoming envelope. RawMessage keeps an explicit null apart
// from an absent field: a present null decodes to the bytes "null", an absent
// field stays nil.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
	ID      json.RawMessage `json:"id"`
}

// Error is the server-reported error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// DecodeResponse interprets a response body for method. It returns the raw
// result (possibly the bytes "null") or a coded protocol error.
func DecodeResponse(method string, body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.NewMalformedResponseError(method, nil)
	}

	var resp response
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, errors.NewMalformedResponseError(method, err)
	}

	if truthy(resp.Error) {
		return nil, decodeError(method, resp.Error)
	}

	if resp.Result == nil {
		return nil, errors.NewEmptyResponseError(method)
	}
	return resp.Result, nil
}

func decodeError(method string, raw json.RawMessage) error {
	var rpcErr Error
	if err := json.Unmarshal(raw, &rpcErr); err != nil || rpcErr.Message == "" {
		// not an object, or no usable message
		var loose map[string]interface{}
		_ = json.Unmarshal(raw, &loose)
		msg, _ := loose["message"].(string)
		if msg == "" {
			msg = "rpc error from " + method
		}
		code := 0
		if f, ok := loose["code"].(float64); ok {
			code = int(f)
		}
		return errors.NewRPCError(method, code, msg, string(raw))
	}
	return errors.NewRPCError(method, rpcErr.Code, rpcErr.Message, string(rpcErr.Data))
}

// truthy reports whether a raw JSON value would be truthy in a boolean context:
// absent, null, false, 0 and "" are falsy, everything else is truthy.
func truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return false
	}
	switch v[0] {
	case 'n', 'f':
		return false
	case 't', '{', '[':
		return true
	case '"':
		return len(v) > 2
	}
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return true
	}
	return f != 0
}
