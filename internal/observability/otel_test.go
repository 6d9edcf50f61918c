package observability

import (
	"bytes"
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"go.opentelemetry.io/otel"
)

func TestInitStdoutExportsSpans(t *testing.T) {
	c := qt.New(t)

	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Options{Exporter: "stdout", ServiceName: "test", SampleRatio: 1, Writer: &buf}, nil)
	c.Assert(err, qt.IsNil)

	_, span := otel.Tracer(TracerName).Start(context.Background(), "Ratings.AddRating")
	span.End()

	c.Assert(shutdown(context.Background()), qt.IsNil)
	c.Assert(buf.String(), qt.Contains, "Ratings.AddRating")
}

func TestInitRejectsUnknownExporter(t *testing.T) {
	c := qt.New(t)
	_, err := Init(context.Background(), Options{Exporter: "zipkin"}, nil)
	c.Assert(err, qt.ErrorMatches, `unknown otel exporter "zipkin"`)
}

func TestClampRatio(t *testing.T) {
	c := qt.New(t)
	c.Assert(clampRatio(-1), qt.Equals, 0.0)
	c.Assert(clampRatio(0.25), qt.Equals, 0.25)
	c.Assert(clampRatio(3), qt.Equals, 1.0)
}
