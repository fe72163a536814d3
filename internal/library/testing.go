package library

import (
	"fmt"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// FieldCounter is the subevent field read by counter_below and written by
// increment.
const FieldCounter = "counter"

// counterBelowCondition holds while the subevent counter is below "limit".
type counterBelowCondition struct{}

func (counterBelowCondition) ID() string { return "counter_below" }

func (c counterBelowCondition) Evaluate(_ *rules.Env, _ rules.Scope, sub *rules.Subevent, params *doc.Object) (bool, error) {
	limit, ok := params.GetNumber("limit")
	if !ok {
		return false, fmt.Errorf("%s: missing numeric parameter \"limit\"", c.ID())
	}
	return sub.Doc.NumberOr(FieldCounter, 0) < limit, nil
}

// incrementFunction adds "amount" (default 1) to the subevent counter.
type incrementFunction struct{}

func (incrementFunction) ID() string { return "increment" }

func (incrementFunction) Execute(_ *rules.Env, _ rules.Scope, sub *rules.Subevent, params *doc.Object) error {
	amount := params.NumberOr("amount", 1)
	sub.Doc.Set(FieldCounter, doc.NumberValue(sub.Doc.NumberOr(FieldCounter, 0)+amount))
	return nil
}
