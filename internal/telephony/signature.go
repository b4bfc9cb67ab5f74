package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// SignatureHeader carries the provider's request signature.
const SignatureHeader = "X-Twilio-Signature"

// ComputeSignature returns the Twilio request signature for url and params:
// base64(HMAC-SHA1(authToken, url + k1 + v1 + k2 + v2 ...)) with keys in
// ascending byte order and no separators. The format is fixed by the provider;
// any change breaks validation of real traffic.
func ComputeSignature(rawURL string, params map[string]string, authToken string) string {
	values := make(url.Values, len(params))
	for k, v := range params {
		values.Set(k, v)
	}
	return ComputeSignatureValues(rawURL, values, authToken)
}

// ComputeSignatureValues is ComputeSignature for repeated keys: every value of
// a key is appended in the order received.
func ComputeSignatureValues(rawURL string, params url.Values, authToken string) string {
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(signingString(rawURL, params)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signingString(rawURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(rawURL)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	return b.String()
}

// ValidateSignature compares exactly; no case or whitespace normalization.
// An empty signature or auth token never validates.
func ValidateSignature(rawURL string, params map[string]string, signature, authToken string) bool {
	if signature == "" || authToken == "" {
		return false
	}
	return hmac.Equal([]byte(ComputeSignature(rawURL, params, authToken)), []byte(signature))
}

// ValidateSignatureValues is ValidateSignature over url.Values.
func ValidateSignatureValues(rawURL string, params url.Values, signature, authToken string) bool {
	if signature == "" || authToken == "" {
		return false
	}
	return hmac.Equal([]byte(ComputeSignatureValues(rawURL, params, authToken)), []byte(signature))
}

// RequestURL reconstructs the URL the provider signed.
//
// - publicBaseURL, when set, wins: base + request URI (path and query)
// - otherwise scheme comes from X-Forwarded-Proto (TLS, then http, as fallback)
//   and host from X-Forwarded-Host (Host as fallback)
func RequestURL(r *http.Request, publicBaseURL string) string {
	uri := r.URL.RequestURI()
	if publicBaseURL != "" {
		return strings.TrimRight(publicBaseURL, "/") + uri
	}

	scheme := firstHeaderValue(r.Header.Get("X-Forwarded-Proto"))
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	host := firstHeaderValue(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + uri
}

// firstHeaderValue returns the first entry of a comma-separated proxy header.
func firstHeaderValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
