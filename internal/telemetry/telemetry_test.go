package telemetry

import (
	"context"
	"io"
	"log"
	"testing"
)

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	shutdown := Setup(context.Background(), "turnstile-test", "", log.New(io.Discard, "", 0))
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
