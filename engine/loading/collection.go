package loading

import (
	"fmt"

	"github.com/spaghettifunk/gantry/engine/assets"
	"github.com/spaghettifunk/gantry/engine/core"
	"github.com/spaghettifunk/gantry/engine/dynamic"
	"github.com/spaghettifunk/gantry/engine/resources"
	"github.com/spaghettifunk/gantry/engine/states"
)

// AssetCollection is the contract every collection type implements. Load
// emits the handles that must become ready and must not block; dynamic keys
// are resolved at the moment Load is called. Create may assume every handle
// returned by Load is fully loaded and must not trigger new loads.
//
// The created collection instance itself is published to the resource
// store, keyed by its type.
type AssetCollection interface {
	Load(ctx *Context) []assets.Handle
	Create(ctx *Context) error
}

// FinallyConstruct builds a resource that depends on fully-loaded
// collections. It runs during the finalize phase, after every collection of
// the owning loading state has been published. A non-nil return value is
// published to the resource store.
type FinallyConstruct func(ctx *Context) interface{}

// Context is handed to collection Load/Create calls and finalize callbacks.
// It carries the collaborators a collection may consult, plus the identity
// used in error messages.
type Context struct {
	State     states.StateID
	Server    assets.Server
	Dynamic   *dynamic.Registry
	Resources *resources.Store

	collection string
}

// DynamicHandles resolves the dynamic key and issues its load requests,
// returning the handles to await. A missing key is a fatal configuration
// error.
func (ctx *Context) DynamicHandles(key string) []assets.Handle {
	asset, ok := ctx.Dynamic.Lookup(key)
	if !ok {
		ctx.fatalf("collection %s - no dynamic asset registered for required key '%s'", ctx.collection, key)
	}
	return asset.Load(ctx.Server)
}

// OptionalDynamicHandles is DynamicHandles for optional fields: an
// unregistered key yields nil instead of aborting.
func (ctx *Context) OptionalDynamicHandles(key string) []assets.Handle {
	asset, ok := ctx.Dynamic.Lookup(key)
	if !ok {
		return nil
	}
	return asset.Load(ctx.Server)
}

// DynamicSingle builds the dynamic key into its final single handle. A
// missing key, a failing build, or a collection-shaped descriptor is a
// fatal configuration error naming the key and collection.
func (ctx *Context) DynamicSingle(key string) assets.Handle {
	value := ctx.build(key, true)
	handle, ok := value.Single()
	if !ok {
		ctx.fatalf("collection %s - dynamic key '%s' resolves to a collection of handles, a single handle was requested", ctx.collection, key)
	}
	return handle
}

// DynamicMany builds the dynamic key into its final handle list. A missing
// key or a single-shaped descriptor is a fatal configuration error.
func (ctx *Context) DynamicMany(key string) []assets.Handle {
	value := ctx.build(key, true)
	handles, ok := value.Many()
	if !ok {
		ctx.fatalf("collection %s - dynamic key '%s' resolves to a single handle, a collection was requested", ctx.collection, key)
	}
	return handles
}

// OptionalDynamicSingle is DynamicSingle for optional fields. The absent
// key yields (zero, false); a registered key with the wrong shape still
// aborts.
func (ctx *Context) OptionalDynamicSingle(key string) (assets.Handle, bool) {
	if _, ok := ctx.Dynamic.Lookup(key); !ok {
		return assets.Handle{}, false
	}
	return ctx.DynamicSingle(key), true
}

// OptionalDynamicMany is DynamicMany for optional fields.
func (ctx *Context) OptionalDynamicMany(key string) ([]assets.Handle, bool) {
	if _, ok := ctx.Dynamic.Lookup(key); !ok {
		return nil, false
	}
	return ctx.DynamicMany(key), true
}

func (ctx *Context) build(key string, required bool) dynamic.Value {
	asset, ok := ctx.Dynamic.Lookup(key)
	if !ok {
		if required {
			ctx.fatalf("collection %s - no dynamic asset registered for required key '%s'", ctx.collection, key)
		}
		return dynamic.Value{}
	}
	value, err := asset.Build(ctx.Server)
	if err != nil {
		ctx.fatalf("collection %s - building dynamic key '%s': %s", ctx.collection, key, err.Error())
	}
	return value
}

// Configuration errors abort the pass; they are not load failures and are
// never retried.
func (ctx *Context) fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	core.LogError("%s", msg)
	panic(msg)
}
