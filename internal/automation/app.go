//go:build !no_automation

package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/zcl"
)

// ErrStopped is returned by an application that has been shut down.
var ErrStopped = errors.New("automation: application stopped")

// Commander sends commands on behalf of scripts. The host implements it.
type Commander interface {
	Registry() *zcl.Registry
	Prepare(cmd *zcl.Command) *zcl.Command
	SendCommand(ctx context.Context, cmd *zcl.Command) error
}

const (
	callTimeout = 5 * time.Second
	sendTimeout = 10 * time.Second
	sendQueue   = 16
)

// App runs one script as an endpoint application. The script sets the global
// `cluster` and may define on_startup(cluster), on_command(cmd) and
// on_shutdown(). Calls into the VM are serialized by mu.
type App struct {
	script  *Script
	cmdr    Commander
	logger  *slog.Logger
	cluster uint16
	timeout time.Duration

	mu     sync.Mutex
	state  *lua.LState
	key    endpoint.Key
	timers int
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	sends  chan *zcl.Command
	wg     sync.WaitGroup
}

// NewApp loads a script into a fresh sandboxed VM and runs its top level.
func NewApp(s *Script, cmdr Commander, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		script:  s,
		cmdr:    cmdr,
		logger:  logger.With("component", "automation", "script", s.ID),
		timeout: callTimeout,
		state:   newSandbox(),
		ctx:     ctx,
		cancel:  cancel,
		sends:   make(chan *zcl.Command, sendQueue),
	}
	registerZigbeeModule(a.state, a)
	registerSystemModule(a.state, a.logger)

	if err := a.run(func(L *lua.LState) error { return L.DoString(s.LuaCode) }); err != nil {
		a.abort()
		return nil, fmt.Errorf("automation: load %s: %w", s.ID, err)
	}
	id, err := clusterGlobal(a.state)
	if err != nil {
		a.abort()
		return nil, fmt.Errorf("automation: load %s: %w", s.ID, err)
	}
	a.cluster = id

	a.wg.Add(1)
	go a.sendLoop()
	return a, nil
}

func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	for _, name := range []string{"os", "io", "loadfile", "dofile", "require", "load", "debug", "package"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func clusterGlobal(L *lua.LState) (uint16, error) {
	n, ok := L.GetGlobal("cluster").(lua.LNumber)
	if !ok {
		return 0, errors.New("script does not set a numeric `cluster`")
	}
	f := float64(n)
	if f < 0 || f > math.MaxUint16 || f != math.Trunc(f) {
		return 0, fmt.Errorf("cluster %v out of range", f)
	}
	return uint16(f), nil
}

func (a *App) abort() {
	a.cancel()
	a.state.Close()
}

// Script returns the script the application runs.
func (a *App) Script() *Script { return a.script }

// Key returns the endpoint the application was started on.
func (a *App) Key() endpoint.Key {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.key
}

func (a *App) ClusterID() uint16 { return a.cluster }

func (a *App) AppStartup(c *endpoint.Cluster) error {
	a.mu.Lock()
	a.key = c.EndpointKey()
	a.mu.Unlock()
	return a.callHook("on_startup", func(L *lua.LState) []lua.LValue {
		return []lua.LValue{clusterTable(L, c)}
	})
}

func (a *App) CommandReceived(cmd *zcl.Command) error {
	return a.callHook("on_command", func(L *lua.LState) []lua.LValue {
		return []lua.LValue{commandTable(L, cmd)}
	})
}

// AppShutdown runs on_shutdown and releases the VM.
func (a *App) AppShutdown() {
	if err := a.callHook("on_shutdown", nil); err != nil && !errors.Is(err, ErrStopped) {
		a.logger.Error("shutdown hook failed", "err", err)
	}
	a.release()
}

// release stops the send loop and timers and closes the VM without running
// any hook.
func (a *App) release() {
	a.cancel()
	a.wg.Wait()
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		a.state.Close()
	}
}

// callHook calls a global function if the script defines it.
func (a *App) callHook(name string, args func(*lua.LState) []lua.LValue) error {
	err := a.run(func(L *lua.LState) error {
		fn, ok := L.GetGlobal(name).(*lua.LFunction)
		if !ok {
			return nil
		}
		var argv []lua.LValue
		if args != nil {
			argv = args(L)
		}
		return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, argv...)
	})
	if err != nil && !errors.Is(err, ErrStopped) {
		return fmt.Errorf("automation: %s: %s: %w", a.script.ID, name, err)
	}
	return err
}

// run executes fn against the VM under mu with a call deadline.
func (a *App) run(fn func(*lua.LState) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrStopped
	}
	ctx, cancel := context.WithTimeout(a.ctx, a.timeout)
	defer cancel()
	a.state.SetContext(ctx)
	defer a.state.RemoveContext()
	return fn(a.state)
}

// enqueue queues cmd for sending. Scripts run on the host's reader, which
// must not block on the co-processor.
func (a *App) enqueue(cmd *zcl.Command) bool {
	select {
	case a.sends <- cmd:
		return true
	default:
		a.logger.Warn("send queue full, dropping command", "cmd", cmd.Name(), "dst", cmd.Destination)
		return false
	}
}

func (a *App) sendLoop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case cmd := <-a.sends:
			a.cmdr.Prepare(cmd)
			ctx, cancel := context.WithTimeout(a.ctx, sendTimeout)
			if err := a.cmdr.SendCommand(ctx, cmd); err != nil {
				a.logger.Error("script send failed", "cmd", cmd.Name(), "dst", cmd.Destination, "err", err)
			}
			cancel()
		}
	}
}

func clusterTable(L *lua.LState, c *endpoint.Cluster) *lua.LTable {
	key := c.EndpointKey()
	t := L.NewTable()
	t.RawSetString("id", lua.LNumber(c.ID()))
	t.RawSetString("name", lua.LString(c.Name()))
	t.RawSetString("role", lua.LString(c.Role().String()))
	t.RawSetString("network", lua.LNumber(key.Network))
	t.RawSetString("endpoint", lua.LNumber(key.Endpoint))
	attrs := L.NewTable()
	for _, attr := range c.Attributes() {
		attrs.RawSetInt(int(attr.ID), goToLua(L, attr.Value))
	}
	t.RawSetString("attributes", attrs)
	return t
}

func commandTable(L *lua.LState, cmd *zcl.Command) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("cluster", lua.LNumber(cmd.ClusterID()))
	t.RawSetString("command", lua.LNumber(cmd.CommandID()))
	t.RawSetString("name", lua.LString(cmd.Name()))
	t.RawSetString("generic", lua.LBool(cmd.Generic()))
	t.RawSetString("direction", lua.LString(cmd.Direction().String()))
	t.RawSetString("tsn", lua.LNumber(cmd.TransactionID))
	src := L.NewTable()
	src.RawSetString("network", lua.LNumber(cmd.Source.Network))
	src.RawSetString("endpoint", lua.LNumber(cmd.Source.Endpoint))
	t.RawSetString("source", src)
	t.RawSetString("fields", goToLua(L, cmd.FieldMap()))
	return t
}
