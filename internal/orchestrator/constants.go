package orchestrator

// Channel sizing
const (
	EventBuffer   = 64 // events dropped past this, UI catches up from Status
	ResultBuffer  = 16
	CommandBuffer = 8
)
