package rpc

import "github.com/devrev/tsdb-client-go/pkg/model"

// CodeSuccess is the response header code of an accepted request
const CodeSuccess uint32 = 200

// Header is attached to every storage service response
type Header struct {
	Code  uint32 `json:"code"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the server accepted the request
func (h Header) OK() bool {
	return h.Code == CodeSuccess
}

// WriteRequest carries the points routed to one node
type WriteRequest struct {
	Database  string        `json:"database"`
	RequestID string        `json:"request_id,omitempty"`
	Points    []model.Point `json:"points"`
}

// WriteResponse is the node's answer to a WriteRequest
type WriteResponse struct {
	Header  Header `json:"header"`
	Success uint32 `json:"success"`
	Failed  uint32 `json:"failed"`
}

// RouteRequest asks which nodes own the given metrics
type RouteRequest struct {
	Database string   `json:"database"`
	Metrics  []string `json:"metrics"`
}

// RouteResponse lists the owner of every metric the server knows about
type RouteResponse struct {
	Header Header        `json:"header"`
	Routes []model.Route `json:"routes"`
}
