package mode

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/1broseidon/screenbridge/internal/mode"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
)

type instruments struct {
	switches metric.Int64Counter
	polls    metric.Int64Counter
	failures metric.Int64Counter
}

func newInstruments() instruments {
	var in instruments
	// Creation only fails for invalid instrument names.
	in.switches, _ = meter.Int64Counter("screenbridge.mode.switches",
		metric.WithDescription("Persona switches applied"))
	in.polls, _ = meter.Int64Counter("screenbridge.mode.polls",
		metric.WithDescription("Input polls by result kind"))
	in.failures, _ = meter.Int64Counter("screenbridge.mode.channel_failures",
		metric.WithDescription("Polls where the monitor control channel was unreachable"))
	return in
}
