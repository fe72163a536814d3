package engine

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/grimoire/internal/rules"
)

// Propagate offers sub to every effect of every roster entity, pass after
// pass, until a full pass applies nothing. It returns the number of passes
// run, including the final quiet pass.
//
// Entity effect lists are re-read on every pass, so effects granted
// mid-propagation are still considered before the subevent settles.
func (e *Engine) Propagate(env *rules.Env, sub *rules.Subevent) (int, error) {
	return e.propagate(env, sub)
}

func (e *Engine) propagate(env *rules.Env, sub *rules.Subevent) (int, error) {
	_, span := e.tracer.Start(env.Context(), "grimoire.propagate", trace.WithAttributes(
		attribute.String("grimoire.subevent.id", sub.ID),
		attribute.String("grimoire.subevent.kind", sub.Kind()),
	))
	defer span.End()

	limiter := NewPassLimiter(e.maxPasses)
	for {
		if err := limiter.Check(sub.ID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return limiter.Current(), err
		}
		pass := limiter.Current()

		matched := 0
		for _, entityID := range env.Roster {
			ent, ok := env.Entity(entityID)
			if !ok {
				e.logger.Warn("roster entity not found", "entity", entityID, "subevent", sub.ID)
				continue
			}
			for _, effectID := range ent.Strings(rules.FieldEffects) {
				applied, err := e.applyEffect(env, entityID, effectID, sub, pass)
				if err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
					return pass, err
				}
				if applied {
					matched++
				}
			}
		}

		if matched == 0 {
			span.SetAttributes(attribute.Int("grimoire.passes", pass))
			return pass, nil
		}
	}
}
