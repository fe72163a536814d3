package library

import (
	"fmt"
	"sort"

	"github.com/Shopify/go-lua"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// Lua handlers run "script" in a fresh state with these globals:
//
//	subevent  table copy of the subevent document
//	params    table copy of the handler document
//	owner     effect owner id
//	effect    effect id
//	roll      function(spec) -> number, backed by the dice service
//
// Only the base, string, table and math libraries are opened, and the base
// file loaders are removed, so scripts cannot reach the host.
//
// The condition script must return a boolean. The function script may
// return a table, which is joined into the subevent, or nothing.

type luaCondition struct{}

func (luaCondition) ID() string { return "lua" }

func (c luaCondition) Evaluate(env *rules.Env, scope rules.Scope, sub *rules.Subevent, params *doc.Object) (bool, error) {
	state, err := runScript(c.ID(), env, scope, sub, params)
	if err != nil {
		return false, err
	}
	if state.TypeOf(-1) != lua.TypeBoolean {
		return false, fmt.Errorf("%s condition: script returned %s, want boolean", c.ID(), lua.TypeNameOf(state, -1))
	}
	return state.ToBoolean(-1), nil
}

type luaFunction struct{}

func (luaFunction) ID() string { return "lua" }

func (f luaFunction) Execute(env *rules.Env, scope rules.Scope, sub *rules.Subevent, params *doc.Object) error {
	state, err := runScript(f.ID(), env, scope, sub, params)
	if err != nil {
		return err
	}
	switch state.TypeOf(-1) {
	case lua.TypeNil, lua.TypeNone:
		return nil
	case lua.TypeTable:
		v, err := luaToValue(state, -1)
		if err != nil {
			return fmt.Errorf("%s function: script result: %w", f.ID(), err)
		}
		patch, ok := v.(*doc.Object)
		if !ok {
			return fmt.Errorf("%s function: script returned an array, want table with string keys", f.ID())
		}
		sub.Doc.Join(patch)
		return nil
	default:
		return fmt.Errorf("%s function: script returned %s, want table or nil", f.ID(), lua.TypeNameOf(state, -1))
	}
}

func runScript(id string, env *rules.Env, scope rules.Scope, sub *rules.Subevent, params *doc.Object) (*lua.State, error) {
	script, err := requireString(id, params, "script")
	if err != nil {
		return nil, err
	}

	state := newSandbox()

	pushValue(state, sub.Doc)
	state.SetGlobal("subevent")
	pushValue(state, params)
	state.SetGlobal("params")
	state.PushString(scope.Owner)
	state.SetGlobal("owner")
	state.PushString(scope.Effect)
	state.SetGlobal("effect")
	state.PushGoFunction(func(l *lua.State) int {
		spec := lua.CheckString(l, 1)
		if env == nil || env.Dice == nil {
			lua.Errorf(l, "roll: no dice service")
			return 0
		}
		n, err := env.Dice.Roll(spec)
		if err != nil {
			lua.Errorf(l, "roll: %s", err.Error())
			return 0
		}
		l.PushInteger(n)
		return 1
	})
	state.SetGlobal("roll")

	if err := lua.LoadString(state, script); err != nil {
		return nil, fmt.Errorf("%s: load script: %w", id, err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("%s: run script: %w", id, err)
	}
	return state, nil
}

var sandboxLibraries = []lua.RegistryFunction{
	{Name: "_G", Function: lua.BaseOpen},
	{Name: "string", Function: lua.StringOpen},
	{Name: "table", Function: lua.TableOpen},
	{Name: "math", Function: lua.MathOpen},
}

// newSandbox returns a state with the pure libraries open.
func newSandbox() *lua.State {
	state := lua.NewState()
	for _, lib := range sandboxLibraries {
		lua.Require(state, lib.Name, lib.Function, true)
		state.Pop(1)
	}
	for _, name := range []string{"dofile", "loadfile"} {
		state.PushNil()
		state.SetGlobal(name)
	}
	return state
}

// pushValue pushes a document value onto the Lua stack. Arrays become
// 1-based sequences.
func pushValue(state *lua.State, v doc.Value) {
	switch val := v.(type) {
	case doc.String:
		state.PushString(string(val))
	case doc.Int:
		state.PushInteger(int(val))
	case doc.Float:
		state.PushNumber(float64(val))
	case doc.Bool:
		state.PushBoolean(bool(val))
	case *doc.Array:
		state.NewTable()
		for i, item := range val.Items() {
			pushValue(state, item)
			state.RawSetInt(-2, i+1)
		}
	case *doc.Object:
		state.NewTable()
		val.Range(func(key string, item doc.Value) bool {
			pushValue(state, item)
			state.SetField(-2, key)
			return true
		})
	default:
		state.PushNil()
	}
}

// luaToValue converts the value at index into a document value. Tables
// with keys 1..n become arrays; tables with string keys become objects with
// sorted keys, since Lua tables carry no order. Any other table shape is an
// error.
func luaToValue(state *lua.State, index int) (doc.Value, error) {
	switch state.TypeOf(index) {
	case lua.TypeString:
		s, _ := state.ToString(index)
		return doc.String(s), nil
	case lua.TypeNumber:
		n, _ := state.ToNumber(index)
		return doc.NumberValue(n), nil
	case lua.TypeBoolean:
		return doc.Bool(state.ToBoolean(index)), nil
	case lua.TypeTable:
		return tableToValue(state, index)
	default:
		return doc.Null{}, nil
	}
}

func tableToValue(state *lua.State, index int) (doc.Value, error) {
	index = state.AbsIndex(index)

	maxIndex, count := 0, 0
	fields := make(map[string]doc.Value)
	state.PushNil()
	for state.Next(index) {
		switch state.TypeOf(-2) {
		case lua.TypeNumber:
			n, _ := state.ToNumber(-2)
			idx, ok := state.ToInteger(-2)
			if !ok || idx <= 0 || float64(idx) != n {
				return nil, fmt.Errorf("table key %g is not a positive integer", n)
			}
			count++
			maxIndex = max(maxIndex, idx)
		case lua.TypeString:
			key, _ := state.ToString(-2)
			v, err := luaToValue(state, -1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			fields[key] = v
		default:
			return nil, fmt.Errorf("table key of type %s is not supported", lua.TypeNameOf(state, -2))
		}
		state.Pop(1)
	}

	if count > 0 && len(fields) > 0 {
		return nil, fmt.Errorf("table mixes positional and named keys")
	}
	if count > 0 {
		if maxIndex != count {
			return nil, fmt.Errorf("table has holes: %d elements up to index %d", count, maxIndex)
		}
		arr := doc.NewArray()
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			v, err := luaToValue(state, -1)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr.Append(v)
			state.Pop(1)
		}
		return arr, nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := doc.NewObject()
	for _, k := range keys {
		obj.Set(k, fields[k])
	}
	return obj, nil
}
