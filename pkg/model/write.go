package model

import "math"

// WriteResponse counts the points a node accepted and rejected for one write
type WriteResponse struct {
	Success uint32 `json:"success"`
	Failed  uint32 `json:"failed"`
}

// NewWriteResponse creates a write response with the given counts
func NewWriteResponse(success, failed uint32) WriteResponse {
	return WriteResponse{Success: success, Failed: failed}
}

// Add returns the pointwise sum of two responses. Counts saturate at
// math.MaxUint32 instead of wrapping.
func (r WriteResponse) Add(other WriteResponse) WriteResponse {
	return WriteResponse{
		Success: saturatingAdd(r.Success, other.Success),
		Failed:  saturatingAdd(r.Failed, other.Failed),
	}
}

// Total returns the number of points the node saw, saturating like Add
func (r WriteResponse) Total() uint32 {
	return saturatingAdd(r.Success, r.Failed)
}

func saturatingAdd(a, b uint32) uint32 {
	if a > math.MaxUint32-b {
		return math.MaxUint32
	}
	return a + b
}
