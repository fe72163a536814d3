// Package library holds the built-in condition, function and subevent
// handlers and installs them into a rules.Registry.
//
// Content-specific logic that does not warrant a Go handler can be written
// as a Lua script through the "lua" condition and function.
package library

import (
	"fmt"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// Install registers every built-in handler. With includeTesting it also
// registers the fixture handlers used by tests and scenarios.
func Install(r *rules.Registry, includeTesting bool) error {
	conditions := []rules.ConditionHandler{
		constantCondition{id: "true", value: true},
		constantCondition{id: "false", value: false},
		compareCondition{},
		hasTagCondition{},
		entityHasTagCondition{},
		isActorCondition{},
		isCanceledCondition{},
		withinDistanceCondition{},
		luaCondition{},
	}
	functions := []rules.FunctionHandler{
		setFunction{},
		addFunction{},
		appendTagFunction{},
		cancelFunction{},
		affinityFunction{id: "grant_immunity", field: AffinityImmunity},
		affinityFunction{id: "grant_resistance", field: AffinityResistance},
		affinityFunction{id: "grant_vulnerability", field: AffinityVulnerability},
		invokeSubeventFunction{},
		grantEffectFunction{},
		revokeEffectFunction{},
		luaFunction{},
	}
	subevents := []rules.SubeventHandler{
		genericSubevent{id: SubeventGeneric},
		genericSubevent{id: SubeventRest},
		damageAffinitySubevent{},
		damageSubevent{},
	}

	if includeTesting {
		conditions = append(conditions, counterBelowCondition{})
		functions = append(functions, incrementFunction{})
		subevents = append(subevents, genericSubevent{id: SubeventTest})
	}

	for _, h := range conditions {
		if err := r.RegisterCondition(h); err != nil {
			return err
		}
	}
	for _, h := range functions {
		if err := r.RegisterFunction(h); err != nil {
			return err
		}
	}
	for _, h := range subevents {
		if err := r.RegisterSubevent(h); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry builds and initializes a registry holding the built-ins.
func NewRegistry(includeTesting bool) (*rules.Registry, error) {
	r := rules.NewRegistry(Install)
	if err := r.Initialize(includeTesting); err != nil {
		return nil, err
	}
	return r, nil
}

// Actor selectors accepted by the "actor" parameter.
const (
	ActorSource = "source"
	ActorTarget = "target"
	ActorOwner  = "owner"
	ActorOrigin = "origin"
)

// actorID resolves the "actor" parameter to an entity id.
func actorID(scope rules.Scope, sub *rules.Subevent, params *doc.Object, def string) (string, error) {
	switch actor := params.StringOr("actor", def); actor {
	case ActorSource:
		return sub.Source(), nil
	case ActorTarget:
		return sub.Target(), nil
	case ActorOwner:
		return scope.Owner, nil
	case ActorOrigin:
		return scope.Origin, nil
	default:
		return "", fmt.Errorf("unknown actor %q", actor)
	}
}

// requireString returns params[key] or a descriptive error.
func requireString(handlerID string, params *doc.Object, key string) (string, error) {
	s, ok := params.GetString(key)
	if !ok || s == "" {
		return "", fmt.Errorf("%s: missing string parameter %q", handlerID, key)
	}
	return s, nil
}
