package importer

import "mc-resource-manager/resolver"

// Progress receives the progress of an import batch. Resolved is called from
// worker goroutines and must be safe for concurrent use.
type Progress interface {
	Start(batchID string, total int)
	Resolved(path string, outcome resolver.Outcome, err error)
	Committed(res *Result)
}

type silentProgress struct{}

func (silentProgress) Start(string, int)                         {}
func (silentProgress) Resolved(string, resolver.Outcome, error) {}
func (silentProgress) Committed(*Result)                         {}
