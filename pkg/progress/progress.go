// Package progress receives per-job transfer progress. How it is shown is up
// to the Sink implementation.
package progress

// Sink hands out independent progress handles. Register may be called from
// many goroutines at once.
type Sink interface {
	Register() Handle
}

// Handle tracks a single job. A handle is only used by the job that
// registered it.
type Handle interface {
	SetPosition(pos uint64)
	SetLength(length uint64)
	SetMessage(msg string)
	Increment(n uint64)
	Finish(msg string)
}

// Discard is a Sink that drops every update.
var Discard Sink = discard{}

type discard struct{}

func (discard) Register() Handle { return discard{} }

func (discard) SetPosition(uint64) {}
func (discard) SetLength(uint64)   {}
func (discard) SetMessage(string)  {}
func (discard) Increment(uint64)   {}
func (discard) Finish(string)      {}
