package checkin

import (
	"time"
)

// Result is the outcome for one candidate file.
type Result struct {
	Source      string
	FileID      string
	Checksum    string
	Destination string
	State       State
	Err         error
}

// Summary aggregates a run.
type Summary struct {
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	Results        []Result
	Registered     int
	Duplicates     int
	Failed         int
	RolledBack     int
	RollbackFailed int
}

func (s *Summary) add(res Result) {
	s.Results = append(s.Results, res)
	switch res.State {
	case StateRegistered:
		s.Registered++
	case StateDuplicate:
		s.Duplicates++
	case StateRolledBack:
		s.RolledBack++
	case StateRollbackFailed:
		s.RollbackFailed++
	default:
		s.Failed++
	}
}

// Processed is the number of files examined.
func (s Summary) Processed() int {
	return len(s.Results)
}

// HasRollback reports whether any file ended in RolledBack or RollbackFailed.
func (s Summary) HasRollback() bool {
	return s.RolledBack > 0 || s.RollbackFailed > 0
}
