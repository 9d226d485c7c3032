//go:build !no_automation

package automation

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/zcl"
)

const maxTimersPerScript = 100

// registerZigbeeModule registers the `zigbee` global table in a Lua state.
func registerZigbeeModule(L *lua.LState, a *App) {
	mod := L.NewTable()

	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		return zigbeeLog(L, a)
	}))

	mod.RawSetString("send", L.NewFunction(func(L *lua.LState) int {
		return zigbeeSend(L, a)
	}))

	mod.RawSetString("after", L.NewFunction(func(L *lua.LState) int {
		return zigbeeAfter(L, a)
	}))

	mod.RawSetString("endpoint", L.NewFunction(func(L *lua.LState) int {
		return zigbeeEndpoint(L, a)
	}))

	L.SetGlobal("zigbee", mod)
}

// zigbee.log(msg)
func zigbeeLog(L *lua.LState, a *App) int {
	a.logger.Info("script log", "msg", L.CheckString(1))
	return 0
}

// zigbee.send(cluster, command_name [, fields]) queues a cluster-specific
// command to the endpoint the application is bound to.
// zigbee.send(network, endpoint, cluster, command_name [, fields]) addresses
// any other endpoint. Both return whether the command was queued.
func zigbeeSend(L *lua.LState, a *App) int {
	var network, ep, cluster int
	var name string
	var fields *lua.LTable
	if L.Get(2).Type() == lua.LTString {
		// Called from inside the VM, so a.mu is already held.
		if a.key == (endpoint.Key{}) {
			L.RaiseError("send: application is not bound to an endpoint")
			return 0
		}
		network, ep = int(a.key.Network), int(a.key.Endpoint)
		cluster = L.CheckInt(1)
		name = L.CheckString(2)
		fields = L.OptTable(3, nil)
	} else {
		network = L.CheckInt(1)
		ep = L.CheckInt(2)
		cluster = L.CheckInt(3)
		name = L.CheckString(4)
		fields = L.OptTable(5, nil)
	}

	if network < 0 || network > 0xFFFF || ep < 0 || ep > 0xFF || cluster < 0 || cluster > 0xFFFF {
		L.ArgError(1, "address out of range")
		return 0
	}
	cmd, err := a.cmdr.Registry().NewClusterCommand(uint16(cluster), name)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	if fields != nil {
		var setErr error
		fields.ForEach(func(k, v lua.LValue) {
			if setErr == nil {
				setErr = cmd.Set(k.String(), luaToGo(v))
			}
		})
		if setErr != nil {
			L.RaiseError("%s", setErr.Error())
			return 0
		}
	}
	cmd.Destination = zcl.Address{Network: uint16(network), Endpoint: uint8(ep)}
	L.Push(lua.LBool(a.enqueue(cmd)))
	return 1
}

// zigbee.after(seconds, fn) calls fn once after a delay, unless the
// application stops first.
func zigbeeAfter(L *lua.LState, a *App) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	// L is locked by the caller, so timers is only touched under a.mu.
	if a.timers >= maxTimersPerScript {
		L.RaiseError("too many pending timers (max %d)", maxTimersPerScript)
		return 0
	}
	a.timers++

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-a.ctx.Done():
			return
		}
		err := a.run(func(L *lua.LState) error {
			a.timers--
			return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
		})
		if err != nil {
			a.logger.Error("after callback error", "err", err)
		}
	}()
	return 0
}

// zigbee.endpoint() returns {network=, endpoint=} of the bound endpoint, or
// nil before startup.
func zigbeeEndpoint(L *lua.LState, a *App) int {
	// Called from inside the VM, so a.mu is already held.
	if a.key == (endpoint.Key{}) {
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	t.RawSetString("network", lua.LNumber(a.key.Network))
	t.RawSetString("endpoint", lua.LNumber(a.key.Endpoint))
	L.Push(t)
	return 1
}
