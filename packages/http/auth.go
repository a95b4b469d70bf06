package http

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/auth/oauth2"
)

type AuthType int

const (
	AuthNone AuthType = iota
	AuthBasic
	AuthBearer
	AuthAPIKey      // params: header name, value
	AuthAPIKeyQuery // params: query key, value
	AuthDigest      // params: username, password
	AuthAWS         // params: access key, secret key, region, service
	AuthOAuth2Grant // params: grant type, token URL, client id, client secret, ...
)

var authNames = map[AuthType]string{
	AuthNone:        "none",
	AuthBasic:       "basic",
	AuthBearer:      "bearer",
	AuthAPIKey:      "apiKey",
	AuthAPIKeyQuery: "apiKeyQuery",
	AuthDigest:      "digest",
	AuthAWS:         "aws",
	AuthOAuth2Grant: "oauth2Grant",
}

var authParamCount = map[AuthType]int{
	AuthBasic:       2,
	AuthBearer:      1,
	AuthAPIKey:      2,
	AuthAPIKeyQuery: 2,
	AuthDigest:      2,
	AuthAWS:         4,
	AuthOAuth2Grant: 4,
}

func (t AuthType) String() string {
	if name, ok := authNames[t]; ok {
		return name
	}
	return fmt.Sprintf("AuthType(%d)", int(t))
}

// ParseAuthType maps a name such as "basic" or "oauth2" to an AuthType.
func ParseAuthType(name string) (AuthType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return AuthNone, nil
	case "basic", "preemptive":
		return AuthBasic, nil
	case "bearer", "oauth2":
		return AuthBearer, nil
	case "apikey", "api_key", "api-key":
		return AuthAPIKey, nil
	case "apikeyquery", "api_key_query", "api-key-query":
		return AuthAPIKeyQuery, nil
	case "digest":
		return AuthDigest, nil
	case "aws", "aws4", "sigv4":
		return AuthAWS, nil
	case "oauth2grant", "oauth2-grant", "oauth2_grant":
		return AuthOAuth2Grant, nil
	}
	return AuthNone, fmt.Errorf("unknown auth type %q", name)
}

// Auth holds credentials for one of the supported schemes.
type Auth struct {
	Type   AuthType
	Params []string
}

// Validate checks that the auth carries the parameters its scheme needs.
func (a *Auth) Validate() error {
	want, ok := authParamCount[a.Type]
	if !ok {
		return nil
	}
	if len(a.Params) < want {
		return fmt.Errorf("%s auth needs %d parameters, got %d", a.Type, want, len(a.Params))
	}
	if a.Type == AuthOAuth2Grant {
		_, err := oauth2.ParseParams(a.Params)
		return err
	}
	return nil
}

// ApplyAuth sets the headers or query parameters for schemes that need no
// round trip. Digest, AWS and OAuth2 grants are handled by the client at
// send time.
func (r *Request) ApplyAuth() {
	if r.Auth == nil || r.Auth.Validate() != nil {
		return
	}
	p := r.Auth.Params

	switch r.Auth.Type {
	case AuthBasic:
		creds := p[0] + ":" + p[1]
		r.Headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
	case AuthBearer:
		r.Headers["Authorization"] = "Bearer " + p[0]
	case AuthAPIKey:
		r.Headers[p[0]] = p[1]
	case AuthAPIKeyQuery:
		r.SetQueryParam(p[0], p[1])
	}
}

// digestChallenge holds the parameters for one digest authentication exchange.
type digestChallenge struct {
	username string
	password string
	realm    string
	nonce    string
	uri      string
	qop      string
	nc       string
	cnonce   string
	opaque   string
	method   string
}

// parseWWWAuthenticate parses the WWW-Authenticate header from a 401 response
func parseWWWAuthenticate(header string) map[string]string {
	result := make(map[string]string)
	header = strings.TrimPrefix(strings.TrimSpace(header), "Digest ")

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		result[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return result
}

func (d *digestChallenge) response() string {
	ha1 := md5Hex(d.username + ":" + d.realm + ":" + d.password)
	ha2 := md5Hex(d.method + ":" + d.uri)
	if d.qop == "auth" || d.qop == "auth-int" {
		return md5Hex(strings.Join([]string{ha1, d.nonce, d.nc, d.cnonce, d.qop, ha2}, ":"))
	}
	return md5Hex(ha1 + ":" + d.nonce + ":" + ha2)
}

func (d *digestChallenge) authorization() string {
	parts := []string{
		fmt.Sprintf(`username="%s"`, d.username),
		fmt.Sprintf(`realm="%s"`, d.realm),
		fmt.Sprintf(`nonce="%s"`, d.nonce),
		fmt.Sprintf(`uri="%s"`, d.uri),
		fmt.Sprintf(`response="%s"`, d.response()),
	}
	if d.qop != "" {
		parts = append(parts, "qop="+d.qop, "nc="+d.nc, fmt.Sprintf(`cnonce="%s"`, d.cnonce))
	}
	if d.opaque != "" {
		parts = append(parts, fmt.Sprintf(`opaque="%s"`, d.opaque))
	}
	return "Digest " + strings.Join(parts, ", ")
}

func generateCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// signAWS returns the AWS Signature v4 Authorization header for req and sets
// the Host, X-Amz-Date and X-Amz-Content-Sha256 headers the signature covers.
func signAWS(req *Request, now time.Time) (string, error) {
	p := req.Auth.Params
	accessKey, secretKey, region, service := p[0], p[1], p[2], p[3]

	u, err := url.Parse(req.URL)
	if err != nil {
		return "", err
	}

	t := now.UTC()
	amzDate := t.Format("20060102T150405Z")
	dateStamp := t.Format("20060102")

	signedHeaders := "host;x-amz-date"
	canonicalHeaders := fmt.Sprintf("host:%s\nx-amz-date:%s\n", u.Host, amzDate)
	payloadHash := sha256Hex(req.Body)

	canonicalURI := u.Path
	if canonicalURI == "" {
		canonicalURI = "/"
	}

	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI,
		canonicalQuery(u.Query()),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, region, service)
	stringToSign := strings.Join([]string{"AWS4-HMAC-SHA256", amzDate, scope, sha256Hex(canonicalRequest)}, "\n")

	key := hmacSHA256([]byte("AWS4"+secretKey), dateStamp)
	key = hmacSHA256(key, region)
	key = hmacSHA256(key, service)
	key = hmacSHA256(key, "aws4_request")
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	req.Headers["Host"] = u.Host
	req.Headers["X-Amz-Date"] = amzDate
	req.Headers["X-Amz-Content-Sha256"] = payloadHash

	return fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		accessKey, scope, signedHeaders, signature), nil
}

func canonicalQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		vals := append([]string(nil), values[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(pairs, "&")
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}
