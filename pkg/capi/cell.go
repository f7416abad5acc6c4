package capi

// cell holds at most one value. take is the only way to read the value
// and always leaves the cell empty, so one object can never be reachable
// from two places.
type cell[T any] struct {
	value   T
	present bool
}

// init installs v, overwriting whatever the cell held.
func (c *cell[T]) init(v T) {
	c.value = v
	c.present = true
}

// set reinstalls a value after a take-transform step.
func (c *cell[T]) set(v T) {
	c.init(v)
}

// take moves the value out. An empty cell means the owning handle was
// already consumed, which is a caller bug.
func (c *cell[T]) take(what string) T {
	v, ok := c.tryTake()
	if !ok {
		panic("capi: trying to use an invalid '" + what + "'")
	}
	return v
}

func (c *cell[T]) tryTake() (T, bool) {
	var zero T
	if !c.present {
		return zero, false
	}
	v := c.value
	c.value = zero
	c.present = false
	return v, true
}

func (c *cell[T]) isPresent() bool { return c.present }
