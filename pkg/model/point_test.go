package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteRequest_Metrics(t *testing.T) {
	req := &WriteRequest{Points: []Point{
		{Metric: "cpu"},
		{Metric: "mem"},
		{Metric: "cpu"},
		{Metric: "disk"},
	}}

	assert.Equal(t, []string{"cpu", "mem", "disk"}, req.Metrics())
}

func TestWriteRequest_MetricsEmpty(t *testing.T) {
	req := &WriteRequest{}
	assert.Empty(t, req.Metrics())
}

func TestWriteResponse_Add(t *testing.T) {
	a := NewWriteResponse(5, 1)
	b := NewWriteResponse(2, 0)

	sum := a.Add(b)
	assert.Equal(t, WriteResponse{Success: 7, Failed: 1}, sum)
	assert.Equal(t, uint32(8), sum.Total())

	// operands are not modified
	assert.Equal(t, uint32(5), a.Success)
}

func TestWriteResponse_AddSaturates(t *testing.T) {
	big := NewWriteResponse(math.MaxUint32, math.MaxUint32-1)

	sum := big.Add(NewWriteResponse(2, 1))
	assert.Equal(t, WriteResponse{Success: math.MaxUint32, Failed: math.MaxUint32}, sum)
	assert.Equal(t, uint32(math.MaxUint32), sum.Total())
	assert.Equal(t, uint32(math.MaxUint32), NewWriteResponse(math.MaxUint32, 0).Add(WriteResponse{}).Success)
}
