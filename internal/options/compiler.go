package options

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/masqhttp/masq/fingerprint"
	"github.com/masqhttp/masq/internal/transport"
)

// Compiler holds the fingerprint registry the Option Compiler resolves
// impersonation targets against.
type Compiler struct {
	Registry *fingerprint.Registry
	Logger   *log.Logger
}

// NewCompiler returns a Compiler backed by reg. If reg is nil,
// fingerprint.Default() is used.
func NewCompiler(reg *fingerprint.Registry, logger *log.Logger) *Compiler {
	return &Compiler{Registry: reg, Logger: logger}
}

// Compile turns in into a Program, following the 19-step ordering
// transcribed from curl_cffi's requests/session.py::_set_curl_options:
// method, URL+params, body, headers, cookies, files, auth, timeout,
// redirects, proxy, verify, referer/accept-encoding, impersonate,
// http_version (after impersonate, so it can override), raw options
// (applied last), streaming, HEAD/NOBODY, interface, max_recv_speed.
func (c *Compiler) Compile(in Input) (*Program, error) {
	prog := &Program{
		Trace: make(map[string]any),
	}

	// 1. method
	method := strings.ToUpper(in.Method)
	if method == "" {
		method = "GET"
	}
	prog.Method = method

	// 2. URL + query params
	finalURL, err := applyParams(in.URL, in.Params)
	if err != nil {
		return nil, fmt.Errorf("options: apply params: %w", err)
	}
	prog.URL = finalURL

	// 3. body
	body, bodyLen, contentType, err := compileBody(in)
	if err != nil {
		return nil, fmt.Errorf("options: compile body: %w", err)
	}
	if body != nil || method == "POST" || method == "PUT" || method == "PATCH" {
		prog.Body = body
		prog.BodyLen = bodyLen
	}

	// 4. headers
	hdr, err := c.compileHeaders(in, contentType)
	if err != nil {
		return nil, fmt.Errorf("options: compile headers: %w", err)
	}

	// 5. cookies
	if cookieHeader := compileCookieHeader(in.Cookies); cookieHeader != "" {
		hdr.Set("Cookie", cookieHeader)
		prog.CookieHeader = cookieHeader
	}

	// 6. files already folded into compileBody/contentType above (step 3);
	// curl_cffi's original raises NotImplementedError here — see
	// SPEC_FULL.md §3 for why this implementation does not.

	// 7. auth
	if in.Username != "" || in.Password != "" {
		hdr.Set("Authorization", basicAuthHeader(in.Username, in.Password))
	}

	// 8. timeout
	connectTimeout := in.ConnectTimeout
	totalTimeout := in.Timeout
	if connectTimeout == 0 {
		connectTimeout = totalTimeout
	}
	if in.Stream {
		// Streaming responses don't get a fixed total-timeout; only the
		// connect phase is bounded, matching session.py's
		// "TIMEOUT_MS only if not streaming" rule.
		totalTimeout = 0
	}
	prog.ConnectTimeout = connectTimeout
	prog.TotalTimeout = totalTimeout

	// 9. redirects
	prog.FollowRedirects = in.AllowRedirects
	prog.MaxRedirects = in.MaxRedirects

	// 10. proxy
	if in.ProxyURL != "" {
		u, err := url.Parse(in.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("options: parse proxy url: %w", err)
		}
		if u.Scheme == "https" && strings.HasPrefix(in.URL, "https://") {
			c.warn("https proxy with https target is a common misconfiguration; most servers expect an http:// proxy URL even for https targets")
		}
		prog.ProxyURL = in.ProxyURL
		prog.ProxyIsSOCKS = transport.IsSOCKSScheme(u.Scheme)
	}

	// 11. verify
	prog.TLSVerify = in.Verify
	prog.CACert = in.CACert
	prog.ClientCert = in.ClientCert
	prog.ClientKey = in.ClientKey

	// 12. referer / accept-encoding
	if in.Referer != "" {
		hdr.Set("Referer", in.Referer)
	}
	acceptEncoding := in.AcceptEncoding
	if acceptEncoding == "" {
		acceptEncoding = "gzip, deflate, br, zstd"
	}
	hdr.Set("Accept-Encoding", acceptEncoding)

	// 13. impersonate
	spec, err := c.resolveFingerprint(in)
	if err != nil {
		return nil, err
	}
	if !in.SkipDefaultHeaders {
		applyDefaultHeaders(hdr, spec)
	}

	// 14. http_version, applied after impersonate so it can override
	if in.HTTPVersion != "" {
		spec.HTTPVersion = in.HTTPVersion
	}
	prog.FingerprintSpec = spec

	// 15. raw options (curl_options escape hatch), applied last because it
	// "will alter some options" (session.py's own comment).
	if len(in.RawOptions) > 0 {
		applyRawOptions(prog, hdr, in.RawOptions)
	}

	// 16. streaming bookkeeping — WRITEFUNCTION/HEADERFUNCTION in the
	// original become, in this engine, a bounded channel the response
	// streamer reads from (see response/stream.go); Compile just records
	// the caller's intent.
	prog.Trace["stream"] = in.Stream

	// 17. HEADERDATA is always captured — handled unconditionally by the
	// response package, nothing to compile here.

	// 18. HEAD => NOBODY
	if method == "HEAD" {
		prog.NoBody = true
	}

	// 19. interface / max_recv_speed
	prog.Interface = in.Interface
	prog.MaxRecvSpeed = in.MaxRecvSpeed

	prog.Headers = hdr
	return prog, nil
}

func (c *Compiler) resolveFingerprint(in Input) (fingerprint.Spec, error) {
	reg := c.Registry
	if reg == nil {
		reg = fingerprint.Default()
	}
	name := in.Impersonate
	if name == "" {
		name = "chrome"
	}
	base, err := reg.Resolve(name)
	if err != nil {
		return fingerprint.Spec{}, err
	}
	if in.JA3 == "" && in.Akamai == "" && in.ExtraFP == nil {
		return base, nil
	}
	return fingerprint.Apply(base, fingerprint.Overrides{JA3: in.JA3, Akamai: in.Akamai, Extra: in.ExtraFP}, c.Logger)
}

func (c *Compiler) warn(msg string, kv ...any) {
	if c.Logger != nil {
		c.Logger.Warn(msg, kv...)
	}
}

func applyDefaultHeaders(hdr *transport.OrderedHeader, spec fingerprint.Spec) {
	for _, line := range spec.Headers {
		if hdr.Get(line.Name) == "" {
			hdr.Add(line.Name, line.Value)
		}
	}
}

func applyParams(rawURL string, params map[string][]string) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range params[k] {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func compileBody(in Input) (io.Reader, int64, string, error) {
	if len(in.Files) > 0 {
		return compileMultipart(in.Files, in.Form)
	}
	if in.JSON != nil {
		b, err := json.Marshal(in.JSON)
		if err != nil {
			return nil, 0, "", fmt.Errorf("marshal json body: %w", err)
		}
		return bytes.NewReader(b), int64(len(b)), "application/json", nil
	}
	if len(in.Form) > 0 {
		vals := url.Values{}
		keys := make([]string, 0, len(in.Form))
		for k := range in.Form {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, v := range in.Form[k] {
				vals.Add(k, v)
			}
		}
		encoded := vals.Encode()
		contentType := ""
		if in.Method != "POST" {
			contentType = "application/x-www-form-urlencoded"
		}
		return strings.NewReader(encoded), int64(len(encoded)), contentType, nil
	}
	if in.BodyBytes != nil {
		return bytes.NewReader(in.BodyBytes), int64(len(in.BodyBytes)), "", nil
	}
	if in.Body != nil {
		return in.Body, -1, "", nil
	}
	return nil, 0, "", nil
}

func compileMultipart(files []FilePart, form map[string][]string) (io.Reader, int64, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range form[k] {
			if err := w.WriteField(k, v); err != nil {
				return nil, 0, "", err
			}
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.FieldName, f.FileName)
		if err != nil {
			return nil, 0, "", err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, 0, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, 0, "", err
	}
	return buf, int64(buf.Len()), w.FormDataContentType(), nil
}

func (c *Compiler) compileHeaders(in Input, bodyContentType string) (*transport.OrderedHeader, error) {
	hdr := &transport.OrderedHeader{}

	seen := make(map[string]bool, len(in.HeaderOrder))
	for _, name := range in.HeaderOrder {
		for _, v := range in.Headers[name] {
			hdr.Add(name, v)
		}
		seen[strings.ToLower(name)] = true
	}

	remaining := make([]string, 0, len(in.Headers))
	for name := range in.Headers {
		if !seen[strings.ToLower(name)] {
			remaining = append(remaining, name)
		}
	}
	sort.Strings(remaining)
	for _, name := range remaining {
		for _, v := range in.Headers[name] {
			hdr.Add(name, v)
		}
	}

	if !in.PreserveHost {
		hdr.Del("Host")
	}

	if bodyContentType != "" && hdr.Get("Content-Type") == "" {
		hdr.Set("Content-Type", bodyContentType)
	}

	return hdr, nil
}

func compileCookieHeader(cookies []CookiePair) string {
	if len(cookies) == 0 {
		return ""
	}
	parts := make([]string, len(cookies))
	for i, ck := range cookies {
		parts[i] = ck.Name + "=" + ck.Value
	}
	return strings.Join(parts, "; ")
}

func basicAuthHeader(user, pass string) string {
	raw := user + ":" + pass
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

func applyRawOptions(prog *Program, hdr *transport.OrderedHeader, raw map[string]any) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := raw[k]
		prog.Trace["raw_option:"+k] = v
		if strings.HasPrefix(k, "header:") {
			hdr.Set(strings.TrimPrefix(k, "header:"), fmt.Sprint(v))
		}
	}
}
