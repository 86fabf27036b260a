package metrics

import (
	"math"

	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/sim"
)

// ControlEffort is the mean rate of change of the controller output,
// normalized by the actuator limit. It penalizes nervous controllers.
type ControlEffort struct {
	name    string
	limit   float64
	last    float64
	sum     float64
	samples int
}

func NewControlEffort(actuatorLimit float64) *ControlEffort {
	return &ControlEffort{
		name:  "control_effort",
		limit: actuatorLimit,
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(s sim.Sample) {
	c.sum += math.Abs(dynamo.BackwardDifference(c.last, s.Control, s.Dt))
	c.last = s.Control
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 || c.limit == 0 {
		return 0
	}
	return c.sum / float64(c.samples) / c.limit
}

func (c *ControlEffort) Reset() {
	c.last = 0
	c.sum = 0
	c.samples = 0
}
