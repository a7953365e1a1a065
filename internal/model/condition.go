package model

// ConditionKind discriminates the Condition tagged union.
type ConditionKind string

const (
	ConditionSatisfied          ConditionKind = "satisfied"
	ConditionNever               ConditionKind = "never"
	ConditionVolumeExists         ConditionKind = "volume_exists"
	ConditionVolumeSizeAtLeast    ConditionKind = "volume_size_at_least"
	ConditionCommandReturns       ConditionKind = "command_returns"
	ConditionAndOf                ConditionKind = "and_of"
)

// Volume is a host reference plus a root path; the tree of files and
// directories beneath Root is whatever the evaluator finds there at
// evaluation time. The engine never inspects the tree itself.
type Volume struct {
	Host string `json:"host"`
	Root string `json:"root"`
}

// ProgramKind discriminates how Command.Program should be launched.
type ProgramKind string

const (
	ProgramSequence ProgramKind = "sequence"
	ProgramShell    ProgramKind = "shell"
	ProgramExec     ProgramKind = "exec"
)

// Program is a small tree of ways to describe a command line: a literal
// shell string, an argv-style exec vector, or a sequence of sub-programs
// run one after another.
type Program struct {
	Kind     ProgramKind `json:"kind"`
	Shell    string      `json:"shell,omitempty"`
	Exec     []string    `json:"exec,omitempty"`
	Sequence []Program   `json:"sequence,omitempty"`
}

// Command is a host reference plus a program to run there.
type Command struct {
	Host    string  `json:"host"`
	Program Program `json:"program"`
}

// Condition is the tagged union the engine submits to a condition
// evaluator (internal/condition) to decide whether work is needed before
// a build, and whether it succeeded after. The engine interprets only the
// Kind tag; everything else is opaque payload for the evaluator.
type Condition struct {
	Kind ConditionKind `json:"kind"`

	Volume   *Volume `json:"volume,omitempty"`
	MinBytes int64   `json:"min_bytes,omitempty"`

	Command  *Command `json:"command,omitempty"`
	ExitCode int      `json:"exit_code,omitempty"`

	And []*Condition `json:"and,omitempty"`
}

// Empty reports whether c is the zero value (no condition configured).
func (c *Condition) Empty() bool {
	return c == nil
}

// Equal reports structural equality between two conditions, used by the
// same_active_condition equivalence policy. Equal itself reports two nil
// conditions as equal; equivalence.go keeps them from matching under that
// policy by checking "non-empty" before calling Equal.
func (c *Condition) Equal(other *Condition) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.Kind != other.Kind {
		return false
	}
	switch c.Kind {
	case ConditionSatisfied, ConditionNever:
		return true
	case ConditionVolumeExists:
		return volumeEqual(c.Volume, other.Volume)
	case ConditionVolumeSizeAtLeast:
		return volumeEqual(c.Volume, other.Volume) && c.MinBytes == other.MinBytes
	case ConditionCommandReturns:
		return commandEqual(c.Command, other.Command) && c.ExitCode == other.ExitCode
	case ConditionAndOf:
		if len(c.And) != len(other.And) {
			return false
		}
		for i := range c.And {
			if !c.And[i].Equal(other.And[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func volumeEqual(a, b *Volume) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func commandEqual(a, b *Command) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Host != b.Host {
		return false
	}
	return programEqual(a.Program, b.Program)
}

func programEqual(a, b Program) bool {
	if a.Kind != b.Kind || a.Shell != b.Shell {
		return false
	}
	if len(a.Exec) != len(b.Exec) {
		return false
	}
	for i := range a.Exec {
		if a.Exec[i] != b.Exec[i] {
			return false
		}
	}
	if len(a.Sequence) != len(b.Sequence) {
		return false
	}
	for i := range a.Sequence {
		if !programEqual(a.Sequence[i], b.Sequence[i]) {
			return false
		}
	}
	return true
}
