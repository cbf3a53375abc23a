// Package core defines domain models for MAPF and MAPD planning.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// NodeID is a unique node identifier. On grid maps it equals y*width + x.
type NodeID int

// NilNode marks an unresolved or absent node.
const NilNode NodeID = -1

// Pos is a 2D grid coordinate.
type Pos struct {
	X, Y int
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Config holds the location of every agent at one timestep, indexed by agent id.
type Config []NodeID

// Equal reports whether two configurations place every agent identically.
func (c Config) Equal(other Config) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	copy(out, c)
	return out
}

// Format renders the configuration as "(x,y),(x,y),..." using graph coordinates.
func (c Config) Format(g Graph) string {
	var sb strings.Builder
	for _, v := range c {
		sb.WriteString(g.Pos(v).String())
		sb.WriteByte(',')
	}
	return sb.String()
}

// Path is a time-indexed sequence of nodes for a single agent.
type Path []NodeID

// Cost returns the path length excluding trailing waits at the final node.
func (p Path) Cost() int {
	if len(p) == 0 {
		return 0
	}
	cost := len(p) - 1
	for i := len(p) - 1; i > 0 && p[i] == p[i-1]; i-- {
		cost--
	}
	return cost
}

// Sentinel errors for instance and plan handling.
var (
	ErrInvalidInstance = errors.New("invalid instance")
	ErrNodeNotFound    = errors.New("node does not exist")
	ErrTooManyAgents   = errors.New("number of agents is too large")
	ErrDuplicateStart  = errors.New("duplicate start location")
	ErrDuplicateGoal   = errors.New("duplicate goal location")
)
