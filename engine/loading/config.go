package loading

import (
	"reflect"

	"github.com/spaghettifunk/gantry/engine/dynamic"
	"github.com/spaghettifunk/gantry/engine/states"
)

/** @brief Per-loading-state configuration plus per-pass bookkeeping. */
type Config struct {
	/** @brief State to enter on success; StateNone parks the machine in Done. */
	Next states.StateID
	/** @brief State to enter when any collection fails to load. */
	Failure states.StateID

	// Collection types still being awaited this pass. Duplicated
	// registrations are independent in-flight entries, hence counts.
	loadingCollections map[reflect.Type]int
	// Dynamic collection file formats still being awaited this pass.
	loadingDynamicCollections map[dynamic.FileFormat]struct{}
	// Sticky per-pass failure flag; never cleared until the next pass.
	loadingFailed bool
}

func newConfig() *Config {
	c := &Config{}
	c.beginPass()
	return c
}

// beginPass resets the per-pass bookkeeping. Next and Failure are
// configuration and survive across passes.
func (c *Config) beginPass() {
	c.loadingCollections = make(map[reflect.Type]int)
	c.loadingDynamicCollections = make(map[dynamic.FileFormat]struct{})
	c.loadingFailed = false
}

// Failed reports the sticky failure flag for the current pass.
func (c *Config) Failed() bool {
	return c.loadingFailed
}
