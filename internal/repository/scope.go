package repository

// Scope restricts candidate-owned rows to a single candidate.
// The zero value is the system scope used by workers and recruiter views.
type Scope struct {
	CandidateID int
}

// System returns the unrestricted scope.
func System() Scope { return Scope{} }

// Candidate returns a scope limited to rows owned by candidateID.
func Candidate(candidateID int) Scope { return Scope{CandidateID: candidateID} }

// IsSystem reports whether the scope is unrestricted.
func (s Scope) IsSystem() bool { return s.CandidateID == 0 }
