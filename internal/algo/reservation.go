package algo

import "github.com/elektrokombinacija/pibt-mapd/internal/core"

// noAgent marks a free cell in reservation and path tables.
const noAgent = -1

// reservation maps node id to the agent holding it within one step.
type reservation []int

func newReservation(size int) reservation {
	r := make(reservation, size)
	for i := range r {
		r[i] = noAgent
	}
	return r
}

func (r reservation) get(v core.NodeID) int   { return r[v] }
func (r reservation) free(v core.NodeID) bool { return r[v] == noAgent }
func (r reservation) set(v core.NodeID, a int) { r[v] = a }
func (r reservation) clear(v core.NodeID)      { r[v] = noAgent }

// release frees v only if agent a still holds it.
func (r reservation) release(v core.NodeID, a int) {
	if r[v] == a {
		r[v] = noAgent
	}
}
