// Package telemetry provides OpenTelemetry instrumentation for membank.
//
// Telemetry is disabled by default. When enabled it exports traces and
// metrics over OTLP (gRPC or HTTP/protobuf) and registers the providers
// globally, so packages only ever call otel.Tracer and otel.Meter:
//
//	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Exporter failures degrade to no-op providers; they never fail a command.
//
// Tests use NewTestTelemetry, which records spans in memory and reads
// metrics through a manual reader.
package telemetry
