// Package telemetry provides observability instrumentation for the monitor provider.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and lifecycle event publishing.
// Every component tolerates a nil receiver, so handlers and clients can be
// constructed without telemetry in tests.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("handler")
//	logger = logger.WithInvocation(token, "CREATE").WithResourceID(id)
//	logger.Info("Monitor created")
//
// Logs go to stderr by default; stdout is reserved for progress events.
//
// # Tracing
//
// One span per invocation (handler.<ACTION>) and one client span per
// control-plane call (controlplane.<operation>). Exporters: otlp, stdout, none.
//
// # Metrics
//
//	tel.Metrics.RecordInvocation("CREATE", "SUCCESS", "", duration)
//	tel.Metrics.RecordAPICall("create_monitor", 201, duration)
//	tel.Metrics.RecordError("permanent", "NotFound")
//
// Metrics live on a private registry exposed through Metrics.Handler.
//
// # Lifecycle Events
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("%s %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelError))
package telemetry
