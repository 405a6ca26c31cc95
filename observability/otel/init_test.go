package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer abc ,x-tenant=rfq,broken,=empty,")
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-tenant":      "rfq",
	}, got)
	require.Empty(t, ParseHeaders(""))
}

func TestMergeHeadersPrefersConfigured(t *testing.T) {
	base := map[string]string{"x-tenant": "env", "x-region": "eu"}
	configured := map[string]string{"x-tenant": "config"}

	merged := MergeHeaders(base, configured)
	require.Equal(t, map[string]string{"x-tenant": "config", "x-region": "eu"}, merged)
	require.Equal(t, "env", base["x-tenant"])
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.Error(t, err)
}

func TestInitWithoutSignalsIsNoop(t *testing.T) {
	t.Setenv(HeadersEnv, "x-tenant=rfq")
	shutdown, err := Init(context.Background(), Config{ServiceName: "rfq-sim", Network: "rfq-local"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
