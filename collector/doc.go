/*
Package collector turns the form fields of a DaVinci continue response into
typed collectors, accumulates user input and serializes it back into the
request payload.

Every variant embeds FieldMeta and implements Collector. Optional behavior is
expressed through small interfaces:

	Validator    - Validate() []ValidationError
	Submittable  - collectors that choose the event dispatched to the server
	Initializer  - collectors that accept an initial value from formData

Collectors are built by a Factory. NewFactory registers the built-in field
types; callers may register more:

	f := collector.NewFactory()
	f.Register("CUSTOM", func(field map[string]any) collector.Collector {
		return collector.NewTextCollector(field)
	})
	cs := f.Parse(input)
	cs.Text("username").Value = "alice"
	payload := cs.AsJSON()

Validation never fails with an error: Validate returns the list of problems
for the caller to render.
*/
package collector
