/*
Package observability exposes what the engine does through its lifecycle
hooks: Prometheus metrics for dashboards and structured audit logs.

Both are plain domain.LifecycleHooks and compose with Merge:

	m := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := m.Hooks().Merge(observability.LogHooks(logger))
	engine := runtime.NewEngine(reg, sessions, runtime.WithLifecycleHooks(hooks))
*/
package observability
