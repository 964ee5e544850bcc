package errors

import (
	"fmt"
	"strings"

	"github.com/devrev/tsdb-client-go/pkg/model"
)

// TargetResult is the outcome of the write sent to one node. Exactly one of
// Response and Err is set.
type TargetResult struct {
	Keys     []string
	Response *model.WriteResponse
	Err      Failure
}

// Succeeded builds the result of a node that answered the write
func Succeeded(keys []string, resp model.WriteResponse) TargetResult {
	return TargetResult{Keys: keys, Response: &resp}
}

// Failed builds the result of a node whose write failed
func Failed(keys []string, err Failure) TargetResult {
	return TargetResult{Keys: keys, Err: err}
}

// TargetError pairs the keys routed to a node with the failure it produced
type TargetError struct {
	Keys []string
	Err  Failure
}

// ClusterResult is the combined outcome of one write fanned out across nodes
type ClusterResult struct {
	OKKeys []string
	// OK sums the counts of the nodes that succeeded, saturating at math.MaxUint32
	OK     model.WriteResponse
	Errors []TargetError
}

// AllOK reports whether every node accepted its share of the write
func (r *ClusterResult) AllOK() bool {
	return len(r.Errors) == 0
}

// Err returns nil when every node succeeded and a ClusterPartialFailure otherwise
func (r *ClusterResult) Err() error {
	if r.AllOK() {
		return nil
	}
	return &ClusterPartialFailure{Result: r}
}

// FailedKeys returns the keys of every failed node, in failure order
func (r *ClusterResult) FailedKeys() []string {
	keys := make([]string, 0)
	for _, te := range r.Errors {
		keys = append(keys, te.Keys...)
	}
	return keys
}

// Aggregate folds per-node results into one ClusterResult. Successful counts
// are summed with WriteResponse.Add, saturating at math.MaxUint32, and their
// keys concatenated; every failure is kept unchanged
// with its keys, in input order.
//
// A ClusterPartialFailure inside the input is flattened: its own partition
// replaces the keys it was reported under.
func Aggregate(results []TargetResult) *ClusterResult {
	var total model.WriteResponse
	okKeys := make([]string, 0)
	errs := make([]TargetError, 0)

	for _, res := range results {
		if res.Err == nil {
			if res.Response != nil {
				total = total.Add(*res.Response)
			}
			okKeys = append(okKeys, res.Keys...)
			continue
		}

		if nested, ok := res.Err.(*ClusterPartialFailure); ok && nested.Result != nil {
			total = total.Add(nested.Result.OK)
			okKeys = append(okKeys, nested.Result.OKKeys...)
			errs = append(errs, nested.Result.Errors...)
			continue
		}

		errs = append(errs, TargetError{Keys: res.Keys, Err: res.Err})
	}

	return &ClusterResult{
		OKKeys: okKeys,
		OK:     total,
		Errors: errs,
	}
}

// ClusterPartialFailure is returned when at least one node failed its share
// of a cluster write. The counts of the nodes that succeeded are kept.
type ClusterPartialFailure struct {
	Result *ClusterResult
}

func (e *ClusterPartialFailure) Error() string {
	if e.Result == nil {
		return "cluster write failed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "cluster write failed on %d target(s), ok: %d keys (success %d, failed %d)",
		len(e.Result.Errors), len(e.Result.OKKeys), e.Result.OK.Success, e.Result.OK.Failed)
	for _, te := range e.Result.Errors {
		fmt.Fprintf(&b, "; %v: %v", te.Keys, te.Err)
	}
	return b.String()
}

// Unwrap exposes every per-target failure to errors.Is and errors.As
func (e *ClusterPartialFailure) Unwrap() []error {
	if e.Result == nil {
		return nil
	}
	errs := make([]error, 0, len(e.Result.Errors))
	for _, te := range e.Result.Errors {
		errs = append(errs, te.Err)
	}
	return errs
}

func (e *ClusterPartialFailure) Kind() Kind { return KindClusterPartial }
func (e *ClusterPartialFailure) failure()   {}
