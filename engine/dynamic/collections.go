package dynamic

import (
	"fmt"

	"github.com/spaghettifunk/gantry/engine/core"
	"github.com/spaghettifunk/gantry/engine/states"
)

// Collections tracks, per loading state and per file format, which dynamic
// asset collection files must be loaded and merged before that state's
// collections start loading. Registrations survive state re-entry; the
// files are re-read on every pass.
type Collections struct {
	files  map[states.StateID]map[FileFormat][]string
	orders map[states.StateID][]FileFormat
}

func NewCollections() *Collections {
	return &Collections{
		files:  make(map[states.StateID]map[FileFormat][]string),
		orders: make(map[states.StateID][]FileFormat),
	}
}

// Register appends collection files for the given state. The file format is
// inferred from each extension; registering more files of an already
// registered format is allowed and only warned about.
func (c *Collections) Register(state states.StateID, paths ...string) error {
	for _, path := range paths {
		format, ok := FormatForPath(path)
		if !ok {
			return fmt.Errorf("dynamic collections - '%s' has no recognized collection file extension", path)
		}
		byFormat, ok := c.files[state]
		if !ok {
			byFormat = make(map[FileFormat][]string)
			c.files[state] = byFormat
		}
		if _, exists := byFormat[format]; exists {
			core.LogWarn("dynamic collections - %s files already registered for state '%s'; adding '%s' as well", format, state, path)
		} else {
			c.orders[state] = append(c.orders[state], format)
		}
		byFormat[format] = append(byFormat[format], path)
	}
	return nil
}

// Formats returns the file formats registered for state, in first
// registration order.
func (c *Collections) Formats(state states.StateID) []FileFormat {
	return c.orders[state]
}

// Files returns the file paths of one format for state, in registration
// order. The merge step relies on this order for last-write-wins.
func (c *Collections) Files(state states.StateID, format FileFormat) []string {
	return c.files[state][format]
}
