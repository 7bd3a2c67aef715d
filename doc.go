// Package fsbox provides a scheme-dispatched object store for Go.
//
// Objects are addressed as "scheme://path". A [Registry] maps each scheme to
// a [Backend], and a [Store] exposes read, write, delete and existence checks
// over any registered scheme. Writes can be "managed", in which case a
// [Record] is kept in an [Index] so the object can be tracked beyond its raw
// bytes, or "unmanaged", which is raw storage only.
//
// Backends are usually built from a low-level [StorageEngine] with
// [NewEngineBackend]. Engines are provided by driver packages that register
// themselves by name.
//
// # Supported Drivers
//
//   - local: a directory on disk via afero (import _ "github.com/nuln/fsbox/driver/local")
//   - memory: an in-process afero MemMapFs (registered by the local package)
//   - sharded: content-addressed chunks with deduplication (import _ "github.com/nuln/fsbox/driver/sharded")
//   - rclone: any rclone remote (import _ "github.com/nuln/fsbox/driver/rclone")
//
// # Quick Start
//
//	import (
//	    "github.com/nuln/fsbox"
//	    "github.com/nuln/fsbox/index/memindex"
//	    _ "github.com/nuln/fsbox/driver/local"
//	)
//
//	engine, err := fsbox.Open(&fsbox.Config{Type: "memory"})
//	reg := fsbox.NewRegistry()
//	_ = reg.Register("mem", fsbox.NewEngineBackend("mem", engine))
//	store := fsbox.New(reg, memindex.New())
//	res, err := store.WriteManaged(ctx, "mem://a.txt", []byte("hello"))
//
// # Import All Drivers
//
//	import _ "github.com/nuln/fsbox/drivers"
package fsbox
