// Package transport implements the Transport Binding: the uTLS/HTTP2/HTTP3
// dialers, proxy dialers and ordered header set the rest of masq compiles
// into. It is the concrete stand-in for the "external transport library"
// the public-facing contract assumes, built directly against uTLS, HTTP/2
// and HTTP/3 rather than against an already-opinionated client.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"

	utls "github.com/refraction-networking/utls"

	"github.com/masqhttp/masq/fingerprint"
)

// DialTLSFunc matches both http.Transport.DialTLSContext (tlsCfg nil) and
// http2.Transport.DialTLSContext (tlsCfg supplied by the http2 layer).
type DialTLSFunc func(ctx context.Context, network, addr string, tlsCfg *tls.Config) (net.Conn, error)

// RawDialFunc establishes the underlying TCP connection UTLSDialer then
// wraps with TLS. The default is net.Dialer.DialContext; a SOCKSDialer's
// DialContext is substituted when the Option Compiler resolves a SOCKS
// proxy (spec.md §4.C rule 6).
type RawDialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func defaultRawDial(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}

// UTLSDialer returns a dialer that performs the TLS handshake with a
// ClientHelloSpec built from spec, so the wire-level cipher order,
// extension order, GREASE placement and ALPN list match the impersonated
// browser rather than a generic Go TLS stack. Grounded on
// firasghr-GoSessionEngine/client/tls_dialer.go's UTLSDialer, generalized
// from a hardcoded per-HelloID switch to a data-driven spec compiled at
// call time by BuildClientHelloSpec.
func UTLSDialer(spec fingerprint.Spec) DialTLSFunc {
	return UTLSDialerWithRawDial(spec, defaultRawDial)
}

// UTLSDialerWithRawDial is UTLSDialer with the raw TCP dial step
// substitutable, so a SOCKS proxy (SOCKSDialer.DialContext) can sit
// underneath the uTLS handshake instead of a direct connection.
func UTLSDialerWithRawDial(spec fingerprint.Spec, rawDial RawDialFunc) DialTLSFunc {
	return func(ctx context.Context, network, addr string, tlsCfg *tls.Config) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("transport: parse addr %q: %w", addr, err)
		}
		sni := host
		insecure := false
		var rootCAs *x509.CertPool
		var certs []utls.Certificate
		if tlsCfg != nil {
			if tlsCfg.ServerName != "" {
				sni = tlsCfg.ServerName
			}
			insecure = tlsCfg.InsecureSkipVerify
			rootCAs = tlsCfg.RootCAs
			for _, c := range tlsCfg.Certificates {
				certs = append(certs, utls.Certificate{Certificate: c.Certificate, PrivateKey: c.PrivateKey, Leaf: c.Leaf})
			}
		}

		rawConn, err := rawDial(ctx, network, addr)
		if err != nil {
			return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
		}

		uCfg := &utls.Config{
			ServerName:         sni,
			InsecureSkipVerify: insecure,
			RootCAs:            rootCAs,
			Certificates:       certs,
		}

		helloSpec, err := BuildClientHelloSpec(spec)
		if err != nil {
			_ = rawConn.Close()
			return nil, fmt.Errorf("transport: build client hello spec: %w", err)
		}

		uConn := utls.UClient(rawConn, uCfg, utls.HelloCustom)
		if err := uConn.ApplyPreset(&helloSpec); err != nil {
			_ = rawConn.Close()
			return nil, fmt.Errorf("transport: apply client hello preset: %w", err)
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = uConn.Close()
			return nil, fmt.Errorf("transport: tls handshake with %s: %w", addr, err)
		}

		return uConn, nil
	}
}

// UTLSDialerHTTP1 adapts UTLSDialer's signature to http.Transport.DialTLSContext,
// which does not pass a *tls.Config argument.
func UTLSDialerHTTP1(spec fingerprint.Spec) func(ctx context.Context, network, addr string) (net.Conn, error) {
	inner := UTLSDialer(spec)
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return inner(ctx, network, addr, nil)
	}
}

// toCurveIDs and toSigSchemes below translate the raw uint16 wire values
// carried on fingerprint.Spec into the utls extension/cipher types that
// ApplyPreset expects, preserving insertion order exactly as compiled by
// the Fingerprint Registry or Option Compiler.

// BuildClientHelloSpec compiles a fingerprint.Spec into a utls.ClientHelloSpec:
// the cipher suite list, supported groups, signature algorithms, ALPN and
// extension order all come directly from spec rather than from a
// hand-maintained per-browser switch, so any target the Fingerprint
// Registry resolves (built-in or loaded from registry.json) gets a working
// ClientHello without a matching entry in this file.
func BuildClientHelloSpec(spec fingerprint.Spec) (utls.ClientHelloSpec, error) {
	extOrder, err := parseExtensionOrder(spec.TLSExtensionOrder)
	if err != nil {
		return utls.ClientHelloSpec{}, err
	}

	ciphers := make([]uint16, 0, len(spec.TLSCiphers)+1)
	if spec.TLSGrease {
		ciphers = append(ciphers, utls.GREASE_PLACEHOLDER)
	}
	ciphers = append(ciphers, spec.TLSCiphers...)

	extByID := buildExtensionsByID(spec)

	extensions := make([]utls.TLSExtension, 0, len(extOrder)+1)
	if spec.TLSGrease {
		extensions = append(extensions, &utls.UtlsGREASEExtension{})
	}
	for _, id := range extOrder {
		if ext, ok := extByID[id]; ok {
			extensions = append(extensions, ext)
		}
	}

	minVers := spec.TLSVersionMin
	if minVers == 0 {
		minVers = utls.VersionTLS12
	}

	return utls.ClientHelloSpec{
		CipherSuites:       ciphers,
		CompressionMethods: []byte{0x00},
		Extensions:         extensions,
		TLSVersMin:         minVers,
		TLSVersMax:         utls.VersionTLS13,
	}, nil
}

// extensionID is the IANA TLS ExtensionType, as carried in
// fingerprint.Spec.TLSExtensionOrder.
type extensionID = uint16

func buildExtensionsByID(spec fingerprint.Spec) map[extensionID]utls.TLSExtension {
	m := make(map[extensionID]utls.TLSExtension)

	m[0] = &utls.SNIExtension{}
	m[5] = &utls.StatusRequestExtension{}
	m[10] = &utls.SupportedCurvesExtension{Curves: toCurveIDs(spec.TLSSupportedGroups)}
	m[11] = &utls.SupportedPointsExtension{SupportedPoints: []byte{0x00}}
	m[13] = &utls.SignatureAlgorithmsExtension{SupportedSignatureAlgorithms: toSigSchemes(spec.TLSSignatureHashes)}
	m[16] = &utls.ALPNExtension{AlpnProtocols: spec.TLSALPN}
	m[17] = &utls.StatusRequestV2Extension{}
	m[18] = &utls.SCTExtension{}
	m[21] = &utls.UtlsPaddingExtension{GetPaddingLen: utls.BoringPaddingStyle}
	m[23] = &utls.ExtendedMasterSecretExtension{}
	m[27] = compressionExtension(spec.TLSCertCompression)
	m[28] = &utls.FakeRecordSizeLimitExtension{}
	m[34] = &utls.DelegatedCredentialsExtension{}
	m[35] = &utls.SessionTicketExtension{}
	m[43] = &utls.SupportedVersionsExtension{Versions: []uint16{
		utls.GREASE_PLACEHOLDER, utls.VersionTLS13, utls.VersionTLS12,
	}}
	m[45] = &utls.PSKKeyExchangeModesExtension{Modes: []uint8{utls.PskModeDHE}}
	m[51] = &utls.KeyShareExtension{KeyShares: keyShares(spec)}
	m[17513] = &utls.ApplicationSettingsExtension{SupportedProtocols: spec.TLSALPS}
	m[30032] = &utls.GenericExtension{Id: 30032} // channel ID (legacy, rarely sent)
	m[65281] = &utls.RenegotiationInfoExtension{Renegotiation: utls.RenegotiateOnceAsClient}
	m[65037] = &utls.UtlsGREASEExtension{} // ECH GREASE placeholder

	return m
}

func compressionExtension(methods []string) utls.TLSExtension {
	algs := make([]utls.CertCompressionAlgo, 0, len(methods))
	for _, m := range methods {
		switch m {
		case "brotli":
			algs = append(algs, utls.CertCompressionBrotli)
		case "zlib":
			algs = append(algs, utls.CertCompressionZlib)
		case "zstd":
			algs = append(algs, utls.CertCompressionZstd)
		}
	}
	if len(algs) == 0 {
		algs = []utls.CertCompressionAlgo{utls.CertCompressionBrotli}
	}
	return &utls.UtlsCompressCertExtension{Algorithms: algs}
}

func keyShares(spec fingerprint.Spec) []utls.KeyShare {
	limit := spec.TLSKeyShareLimit
	if limit <= 0 {
		limit = 1
	}
	groups := toCurveIDs(spec.TLSSupportedGroups)
	shares := make([]utls.KeyShare, 0, limit+1)
	if spec.TLSGrease {
		shares = append(shares, utls.KeyShare{Group: utls.CurveID(utls.GREASE_PLACEHOLDER)})
	}
	for i := 0; i < limit && i < len(groups); i++ {
		shares = append(shares, utls.KeyShare{Group: groups[i]})
	}
	return shares
}

func toCurveIDs(raw []uint16) []utls.CurveID {
	out := make([]utls.CurveID, len(raw))
	for i, v := range raw {
		out[i] = utls.CurveID(v)
	}
	return out
}

func toSigSchemes(raw []uint16) []utls.SignatureScheme {
	out := make([]utls.SignatureScheme, len(raw))
	for i, v := range raw {
		out[i] = utls.SignatureScheme(v)
	}
	return out
}
