package handler

import (
	"github.com/devrev/tsdb-client-go/internal/ledger"
	"github.com/devrev/tsdb-client-go/pkg/errors"
	"github.com/devrev/tsdb-client-go/pkg/model"
)

// WriteRequest is the body of POST /v1/write
type WriteRequest struct {
	Points []model.Point `json:"points"`
}

// WriteResponse is returned when every node accepted its share
type WriteResponse struct {
	Status  string `json:"status"`
	Success uint32 `json:"success"`
	Failed  uint32 `json:"failed"`
}

// PartialWriteResponse is returned with 207 when some nodes failed
type PartialWriteResponse struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id,omitempty"`
	OK        OKPart          `json:"ok"`
	Errors    []TargetFailure `json:"errors"`
	LedgerIDs []string        `json:"ledger_ids,omitempty"`
}

// OKPart summarizes the nodes that succeeded
type OKPart struct {
	Keys    []string `json:"keys"`
	Success uint32   `json:"success"`
	Failed  uint32   `json:"failed"`
}

// TargetFailure describes the failure of one node
type TargetFailure struct {
	Keys      []string `json:"keys"`
	Kind      string   `json:"kind"`
	Message   string   `json:"message"`
	Retryable bool     `json:"retryable"`
}

// LedgerResponse is the body of GET /v1/ledger
type LedgerResponse struct {
	Entries []ledger.Entry `json:"entries"`
	Count   int            `json:"count"`
}

// NewPartialWriteResponse serializes a cluster result
func NewPartialWriteResponse(requestID string, result *errors.ClusterResult) PartialWriteResponse {
	failures := make([]TargetFailure, 0, len(result.Errors))
	for _, te := range result.Errors {
		failures = append(failures, TargetFailure{
			Keys:      te.Keys,
			Kind:      te.Err.Kind().String(),
			Message:   te.Err.Error(),
			Retryable: errors.Retryable(te.Err),
		})
	}

	return PartialWriteResponse{
		Status:    "partial",
		RequestID: requestID,
		OK: OKPart{
			Keys:    result.OKKeys,
			Success: result.OK.Success,
			Failed:  result.OK.Failed,
		},
		Errors: failures,
	}
}
