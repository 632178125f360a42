// Package host executes the slots scenario against a live casino web app.
//
// An [Adapter] implements scenario.Host over HTTP. Each transaction becomes
// an OpenTelemetry span and a latency sample for every configured
// metrics.Recorder; each request becomes a client span, optionally carrying
// a W3C traceparent header next to the scenario's own test header.
//
// A [VUser] adapts a scenario.Runner to runner.VUser so the load engine can
// drive it:
//
//	factory := func(id int) runner.VUser {
//		adapter := host.NewAdapter(id, hostOpts)
//		return host.NewVUser(id, inputs, adapter, scenarioOpts)
//	}
package host
