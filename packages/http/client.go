package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	neturl "net/url"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

type Client struct {
	httpClient     *http.Client
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string
	now            func() time.Time
	tokens         *oauth2.TokenCache
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
		now:            time.Now,
		tokens:         oauth2.NewTokenCache(),
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !c.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.proxyURL != "" {
		if proxyURL, err := neturl.Parse(c.proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !c.followRedirect || len(via) >= c.maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// Do sends req without a caller context.
func (c *Client) Do(req *Request) (*Response, error) {
	return c.Send(context.Background(), req)
}

// Send performs req and reads the whole response body. A malformed URL is a
// *config.FatalError; any failure to obtain a response is a *TransportError.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	if err := ValidateURL(req.URL); err != nil {
		return nil, config.WrapFatal("http", "invalid request URL", err)
	}
	if req.Auth != nil {
		if err := req.Auth.Validate(); err != nil {
			return nil, config.WrapFatal("http", "invalid auth", err)
		}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	req = req.Clone()
	req.ApplyAuth()

	var (
		resp *Response
		err  error
	)
	switch {
	case req.Auth != nil && req.Auth.Type == AuthDigest:
		resp, err = c.doWithDigestAuth(ctx, req)
	case req.Auth != nil && req.Auth.Type == AuthAWS:
		var authHeader string
		authHeader, err = signAWS(req, c.now())
		if err == nil {
			resp, err = c.doRequest(ctx, req, authHeader)
		}
	case req.Auth != nil && req.Auth.Type == AuthOAuth2Grant:
		var token *oauth2.Token
		token, err = c.oauth2Token(ctx, req.Auth.Params)
		if err == nil {
			resp, err = c.doRequest(ctx, req, "Bearer "+token.AccessToken)
		}
	default:
		resp, err = c.doRequest(ctx, req, "")
	}

	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL, Err: err}
	}
	return resp, nil
}

// oauth2Token fetches a token through the client's own transport so proxy
// and TLS settings apply to the token endpoint too. Tokens are shared by
// every request the client sends with the same grant.
func (c *Client) oauth2Token(ctx context.Context, params []string) (*oauth2.Token, error) {
	cfg, err := oauth2.ParseParams(params)
	if err != nil {
		return nil, err
	}
	return oauth2.NewProvider(cfg, c.httpClient, c.tokens).Token(ctx)
}

func (c *Client) doRequest(ctx context.Context, req *Request, authHeader string) (*Response, error) {
	var body io.Reader
	var contentType string

	if len(req.Multipart) > 0 {
		multipartBody, ct, err := BuildMultipartBody(req.Multipart, req.BaseDir)
		if err != nil {
			return nil, err
		}
		body = multipartBody
		contentType = ct
	} else if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}

	for k, v := range c.defaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, "Host") {
			httpReq.Host = v
			continue
		}
		httpReq.Header.Set(k, v)
	}

	// Multipart content type carries the boundary, so it wins over any header
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if authHeader != "" {
		httpReq.Header.Set("Authorization", authHeader)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	duration := time.Since(start)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(httpResp.Header))
	for k, v := range httpResp.Header {
		headers[k] = strings.Join(v, ", ")
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    headers,
		Body:       respBody,
		Duration:   duration,
	}, nil
}

func (c *Client) doWithDigestAuth(ctx context.Context, req *Request) (*Response, error) {
	// First request without auth to get the challenge
	resp, err := c.doRequest(ctx, req, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	wwwAuth := resp.Header("WWW-Authenticate")
	if wwwAuth == "" {
		return resp, nil
	}
	params := parseWWWAuthenticate(wwwAuth)

	challenge := &digestChallenge{
		username: req.Auth.Params[0],
		password: req.Auth.Params[1],
		realm:    params["realm"],
		nonce:    params["nonce"],
		uri:      req.URL,
		qop:      params["qop"],
		opaque:   params["opaque"],
		method:   req.Method,
	}
	if u, err := neturl.Parse(req.URL); err == nil {
		challenge.uri = u.RequestURI()
	}

	if challenge.qop != "" {
		challenge.nc = "00000001"
		cnonce, err := generateCnonce()
		if err != nil {
			return nil, err
		}
		challenge.cnonce = cnonce
		if strings.Contains(challenge.qop, "auth") {
			challenge.qop = "auth"
		}
	}

	return c.doRequest(ctx, req, challenge.authorization())
}

func (c *Client) Get(url string, headers map[string]string) (*Response, error) {
	return c.Do(&Request{
		Method:  "GET",
		URL:     url,
		Headers: headers,
	})
}

func (c *Client) Post(url, body string, headers map[string]string) (*Response, error) {
	return c.Do(&Request{
		Method:  "POST",
		URL:     url,
		Body:    body,
		Headers: headers,
	})
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}

// BuildMultipartBody creates a multipart form data body from multipart fields
func BuildMultipartBody(fields []*MultipartField, baseDir string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, field := range fields {
		if field.Type != MultipartFieldFile {
			if err := writer.WriteField(field.Name, field.Value); err != nil {
				return nil, "", err
			}
			continue
		}

		filePath := field.Path
		if !filepath.IsAbs(filePath) && baseDir != "" {
			filePath = filepath.Join(baseDir, filePath)
		}
		if err := validatePathWithinBase(filePath, baseDir); err != nil {
			return nil, "", err
		}
		if err := writeFilePart(writer, field, filePath); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

func writeFilePart(writer *multipart.Writer, field *MultipartField, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	var part io.Writer
	if field.ContentType != "" {
		h := make(textproto.MIMEHeader)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field.Name, filepath.Base(filePath))}
		h["Content-Type"] = []string{field.ContentType}
		part, err = writer.CreatePart(h)
	} else {
		part, err = writer.CreateFormFile(field.Name, filepath.Base(filePath))
	}
	if err != nil {
		return err
	}

	_, err = io.Copy(part, file)
	return err
}
