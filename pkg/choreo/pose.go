// Package choreo teaches and replays joint-space waypoint sequences.
//
// A Recorder captures five poses from a hand-guided arm, and an Executor
// drives the arm back through them as a pick-and-place script, waiting for
// convergence after every motion.
package choreo

import (
	"errors"
	"fmt"
)

// ErrIncompleteSequence is returned when a sequence is missing a role,
// has roles out of order, or mixes poses of different joint counts.
var ErrIncompleteSequence = errors.New("incomplete pose sequence")

// Role is the semantic slot a pose fills in the pick-and-place script.
type Role int

const (
	RolePick Role = iota
	RoleLift
	RoleMid
	RolePlace
	RoleEnd
)

// Roles returns all roles in recording and replay order.
func Roles() []Role {
	return []Role{RolePick, RoleLift, RoleMid, RolePlace, RoleEnd}
}

func (r Role) String() string {
	switch r {
	case RolePick:
		return "pick"
	case RoleLift:
		return "lift"
	case RoleMid:
		return "mid"
	case RolePlace:
		return "place"
	case RoleEnd:
		return "end"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Label returns the operator-facing name used when prompting for the role.
func (r Role) Label() string {
	switch r {
	case RolePick:
		return "PICK POSE"
	case RoleLift:
		return "LIFT POSE"
	case RoleMid:
		return "MID (ACROSS) POSE"
	case RolePlace:
		return "PLACE POSE"
	case RoleEnd:
		return "END POSE"
	default:
		return r.String()
	}
}

// Pose is an immutable joint configuration tagged with its role and label.
type Pose struct {
	role   Role
	label  string
	joints []float64
}

// NewPose copies joints into a new pose.
func NewPose(role Role, label string, joints []float64) Pose {
	return Pose{
		role:   role,
		label:  label,
		joints: append([]float64(nil), joints...),
	}
}

func (p Pose) Role() Role { return p.role }
func (p Pose) Label() string { return p.label }
func (p Pose) Len() int { return len(p.joints) }
func (p Pose) IsZero() bool { return len(p.joints) == 0 }
func (p Pose) At(i int) float64 { return p.joints[i] }

// Joints returns a copy of the joint values.
func (p Pose) Joints() []float64 {
	return append([]float64(nil), p.joints...)
}

func (p Pose) String() string {
	return fmt.Sprintf("%s %v", p.label, p.joints)
}

// Sequence holds one taught pose per role.
type Sequence struct {
	Pick  Pose
	Lift  Pose
	Mid   Pose
	Place Pose
	End   Pose
}

// NewSequence builds a sequence from exactly five poses given in role order.
func NewSequence(poses []Pose) (Sequence, error) {
	roles := Roles()
	if len(poses) != len(roles) {
		return Sequence{}, fmt.Errorf("%w: got %d poses, want %d", ErrIncompleteSequence, len(poses), len(roles))
	}
	var seq Sequence
	for i, p := range poses {
		if p.Role() != roles[i] {
			return Sequence{}, fmt.Errorf("%w: pose %d has role %s, want %s", ErrIncompleteSequence, i, p.Role(), roles[i])
		}
		*seq.slot(roles[i]) = p
	}
	if err := seq.Validate(); err != nil {
		return Sequence{}, err
	}
	return seq, nil
}

func (s *Sequence) slot(r Role) *Pose {
	switch r {
	case RolePick:
		return &s.Pick
	case RoleLift:
		return &s.Lift
	case RoleMid:
		return &s.Mid
	case RolePlace:
		return &s.Place
	case RoleEnd:
		return &s.End
	}
	return nil
}

// Pose returns the pose recorded for role.
func (s Sequence) Pose(r Role) Pose {
	if p := s.slot(r); p != nil {
		return *p
	}
	return Pose{}
}

// Poses returns the poses in role order.
func (s Sequence) Poses() []Pose {
	return []Pose{s.Pick, s.Lift, s.Mid, s.Place, s.End}
}

// Validate reports whether every role holds a recorded pose of the right
// role, and all poses share one joint count.
func (s Sequence) Validate() error {
	n := -1
	for _, r := range Roles() {
		p := s.Pose(r)
		if p.IsZero() {
			return fmt.Errorf("%w: %s pose not recorded", ErrIncompleteSequence, r)
		}
		if p.Role() != r {
			return fmt.Errorf("%w: %s slot holds a %s pose", ErrIncompleteSequence, r, p.Role())
		}
		if n >= 0 && p.Len() != n {
			return fmt.Errorf("%w: %s pose has %d joints, want %d", ErrIncompleteSequence, r, p.Len(), n)
		}
		n = p.Len()
	}
	return nil
}
