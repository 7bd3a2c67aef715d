// Package drivers is a convenience package that registers all built-in
// storage drivers. Import it with a blank identifier to make all drivers
// available:
//
//	import _ "github.com/nuln/fsbox/drivers"
package drivers

import (
	"github.com/nuln/fsbox"
	_ "github.com/nuln/fsbox/driver/local"
	_ "github.com/nuln/fsbox/driver/rclone"
	_ "github.com/nuln/fsbox/driver/sharded"
)

// List returns a list of all registered storage drivers.
func List() []string {
	return fsbox.Drivers()
}
