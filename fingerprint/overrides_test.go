package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseJA3RoundTrip(t *testing.T) {
	ja3 := "771,4865-4866-4867-49195-49199,0-23-65281-10-11,29-23-24,0"

	spec, err := parseJA3(ja3)
	require.NoError(t, err)
	require.Equal(t, uint16(771), spec.TLSVersionMin)
	require.Equal(t, []uint16{4865, 4866, 4867, 49195, 49199}, spec.TLSCiphers)
	require.Equal(t, []uint16{29, 23, 24}, spec.TLSSupportedGroups)
	require.Equal(t, "0-23-65281-10-11", spec.TLSExtensionOrder)
	require.Equal(t, []string{"0"}, spec.TLSCertCompression)
}

func TestParseJA3RejectsWrongFieldCount(t *testing.T) {
	_, err := parseJA3("771,4865-4866")
	require.Error(t, err)
}

func TestParseAkamaiRoundTrip(t *testing.T) {
	ak := "1:65536;2:0;4:6291456|15663105|0|masp"

	spec, err := parseAkamai(ak)
	require.NoError(t, err)
	require.Equal(t, "1:65536;2:0;4:6291456", spec.HTTP2Settings)
	require.Equal(t, uint32(15663105), spec.HTTP2WindowUpdate)
	require.True(t, spec.HTTP2NoPriority)
	require.Equal(t, PseudoHeaderOrder{'m', 'a', 's', 'p'}, spec.HTTP2PseudoHeadersOrder)
}

func TestParseAkamaiRejectsInvalidPseudoOrder(t *testing.T) {
	_, err := parseAkamai("1:65536|15663105|0|mass")
	require.Error(t, err)
}

func TestApplyJA3OverrideReplacesTLSFields(t *testing.T) {
	base, err := NewRegistry().Resolve("chrome131")
	require.NoError(t, err)

	out, err := Apply(base, Overrides{JA3: "771,4865-4866,0-23,29-23,0"}, nil)
	require.NoError(t, err)
	require.Equal(t, []uint16{4865, 4866}, out.TLSCiphers)
	require.Equal(t, "0-23", out.TLSExtensionOrder)
	// Fields untouched by the JA3 grammar (headers) survive from base.
	require.Equal(t, base.Headers, out.Headers)
}

func TestApplyAkamaiOverrideReplacesHTTP2Fields(t *testing.T) {
	base, err := NewRegistry().Resolve("firefox")
	require.NoError(t, err)

	out, err := Apply(base, Overrides{Akamai: "1:1;2:1|100|1|masp"}, nil)
	require.NoError(t, err)
	require.Equal(t, "1:1;2:1", out.HTTP2Settings)
	require.False(t, out.HTTP2NoPriority)
}

func TestApplyRejectsMalformedOverride(t *testing.T) {
	base, err := NewRegistry().Resolve("chrome")
	require.NoError(t, err)

	_, err = Apply(base, Overrides{JA3: "not-a-ja3-string"}, nil)
	require.Error(t, err)
}

func TestApplyExtraPatchMergesOverBase(t *testing.T) {
	base, err := NewRegistry().Resolve("chrome")
	require.NoError(t, err)

	patch := &Spec{ClientVersion: "999", HTTPVersion: HTTPVersion1}
	out, err := Apply(base, Overrides{Extra: patch}, nil)
	require.NoError(t, err)
	require.Equal(t, "999", out.ClientVersion)
	require.Equal(t, HTTPVersion1, out.HTTPVersion)
	require.Equal(t, base.Client, out.Client)
}
