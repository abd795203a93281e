package runner

// Outcome holds the raw result of one command execution. ExitCode is
// nil when the process was killed by timeout or cancellation rather
// than exiting on its own; Reason then records which.
type Outcome struct {
	Command   string // display form of the executed command
	Succeeded bool   // exit code zero
	ExitCode  *int
	Reason    Reason // empty on normal exit
	Stdout    string
	Stderr    string // unbounded here; callers pass it through the limiter
}
