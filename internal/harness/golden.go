package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/grimoire/internal/doc"
)

// Snapshot renders the trace of result as a document: the scenario name,
// the settled subevents in seq order and the effect applications.
func Snapshot(name string, result *Result) *doc.Object {
	trace := doc.NewArray()
	for _, ev := range result.Trace {
		body := ev.Doc
		if body == nil {
			body = doc.NewObject()
		}
		trace.Append(doc.NewObject(
			doc.P("id", doc.String(ev.ID)),
			doc.P("parent_id", doc.String(ev.ParentID)),
			doc.P("seq", doc.Int(ev.Seq)),
			doc.P("depth", doc.Int(int64(ev.Depth))),
			doc.P("subevent", doc.String(ev.Subevent)),
			doc.P("target", doc.String(ev.Target)),
			doc.P("passes", doc.Int(int64(ev.Passes))),
			doc.P("applied", doc.StringArray(ev.Applied...)),
			doc.P("doc", body),
		))
	}

	apps := doc.NewArray()
	for _, app := range result.Applications {
		apps.Append(doc.NewObject(
			doc.P("subevent", doc.String(app.SubeventID)),
			doc.P("seq", doc.Int(app.Seq)),
			doc.P("pass", doc.Int(int64(app.Pass))),
			doc.P("entity", doc.String(app.Entity)),
			doc.P("effect", doc.String(app.Effect)),
			doc.P("behavior", doc.Int(int64(app.Behavior))),
		))
	}

	return doc.NewObject(
		doc.P("scenario", doc.String(name)),
		doc.P("trace", trace),
		doc.P("applications", apps),
	)
}

// RunWithGolden runs scenario and compares its canonical trace with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares result's canonical trace with the golden file for
// name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := doc.MarshalCanonical(Snapshot(name, result))
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
