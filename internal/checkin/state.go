package checkin

// State is the lifecycle position of a single candidate file.
type State string

const (
	StateDiscovered     State = "discovered"
	StateFingerprinted  State = "fingerprinted"
	StateDuplicate      State = "duplicate"
	StateNew            State = "new"
	StatePlaced         State = "placed"
	StateRegistered     State = "registered"
	StateRollingBack    State = "rolling_back"
	StateRolledBack     State = "rolled_back"
	StateRollbackFailed State = "rollback_failed"
	StateFailed         State = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	switch s {
	case StateDuplicate, StateRegistered, StateRolledBack, StateRollbackFailed, StateFailed:
		return true
	default:
		return false
	}
}

func (s State) String() string { return string(s) }
