// Package lua keeps a pool of interpreter states for tool scripts.
package lua

import (
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// LuaPool hands out fresh states. A state that ran a script is closed on
// Put and never reused, so globals set by one call cannot leak into the
// next; the pool only saves the allocation latency.
type LuaPool struct {
	pool sync.Pool
	opts lua.Options
}

func NewLuaPool(opts lua.Options) *LuaPool {
	lp := &LuaPool{opts: opts}
	lp.pool.New = func() any {
		return lua.NewState(lp.opts)
	}
	return lp
}

func (lp *LuaPool) Get() *lua.LState {
	return lp.pool.Get().(*lua.LState)
}

func (lp *LuaPool) Put(L *lua.LState) {
	L.Close()
	lp.pool.Put(lua.NewState(lp.opts))
}
