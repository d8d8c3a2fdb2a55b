// Package telemetry provides observability instrumentation for ocinuke.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and progress event fan-out into one
// bundle a process wires at startup. Nothing here mutates package-level
// logger state: every component is constructed from config and passed to the
// code that needs it.
//
// # Usage
//
// Initialize telemetry once and hand its pieces to the engine:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	eng := engine.NewEngine(driver,
//	    engine.WithLogger(tel.Logger.Zerolog()),
//	    engine.WithEventSink(tel.Events),
//	    engine.WithExecutionMetrics(tel.Metrics))
//
// Metrics implements engine.ExecutionMetrics and EventPublisher implements
// engine.EventSink, so the engine stays free of any telemetry imports.
package telemetry
