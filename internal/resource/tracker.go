package resource

import (
	"fmt"

	"github.com/roach88/grimoire/internal/rules"
)

// Tracker feeds every invoked subevent to the exhausted resources of the
// roster. Register it with engine.WithObserver.
type Tracker struct{}

// NewTracker creates a Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// ObserveSubevent offers sub to each exhausted resource attached to a
// roster entity. State changes are written back into the directory
// documents.
func (t *Tracker) ObserveSubevent(env *rules.Env, sub *rules.Subevent) error {
	for _, entityID := range env.Roster {
		ent, ok := env.Entity(entityID)
		if !ok {
			continue
		}
		for _, id := range ent.Strings(rules.FieldResources) {
			d, ok := env.Directory.Get(rules.KindResource, id)
			if !ok {
				env.Log().Warn("resource not in directory", "resource", id, "entity", entityID)
				continue
			}
			r, err := Load(d)
			if err != nil {
				return fmt.Errorf("track resource %s: %w", id, err)
			}
			if !r.Exhausted() {
				continue
			}

			var drawer Drawer
			if env.Dice != nil {
				drawer = env.Dice
			}
			if r.ProcessSubevent(sub, entityID, drawer) {
				env.Log().Debug("resource refreshed",
					"resource", id,
					"entity", entityID,
					"subevent", sub.ID,
				)
			}
			r.Document()
		}
	}
	return nil
}
