package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const contentTypeJSON = "application/json"

// Response is a backend response with its body read.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	RequestID string
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return errors.New("[Response.Decode] empty body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("[Response.Decode] %w", err)
	}
	return nil
}

// request is one logical call. It may go on the wire twice.
type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	query       url.Values
	header      http.Header
	noAuth      bool
	requestID   string
}

type RequestOption func(*request)

// WithQuery adds query parameters.
func WithQuery(values url.Values) RequestOption {
	return func(r *request) {
		for k, vs := range values {
			for _, v := range vs {
				r.query.Add(k, v)
			}
		}
	}
}

// WithContentType overrides the content type of the body.
func WithContentType(contentType string) RequestOption {
	return func(r *request) {
		r.contentType = contentType
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *request) {
		r.header.Set(key, value)
	}
}

// WithoutAuth sends the request without a bearer token and returns a 401 to
// the caller as is. Login, registration and token refresh use it.
func WithoutAuth() RequestOption {
	return func(r *request) {
		r.noAuth = true
	}
}

// WithRequestID sets the X-Request-Id instead of generating one.
func WithRequestID(id string) RequestOption {
	return func(r *request) {
		if id != "" {
			r.requestID = id
		}
	}
}

func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts...)
}

func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts...)
}

// Do sends a request to path, relative to the base URL, with the current
// credential attached.
//
// A 2xx response is returned with a nil error. Any other response is returned
// together with an *Error describing it. A 401 is first answered by a single
// token refresh and retry; if that does not recover the session the
// credentials are cleared, the OnSessionExpired listeners run and the error
// is of KindUnauthorized. Transport failures are KindConnectivity and carry
// no response.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	req, err := newRequest(method, path, body, opts)
	if err != nil {
		return nil, err
	}
	op := req.op()

	if !req.noAuth && c.proactiveLeeway > 0 {
		if err := c.refreshIfExpiring(ctx); err != nil {
			return nil, err
		}
	}

	resp, gen, err := c.send(ctx, req)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindConnectivity, Err: err}
	}
	if resp.Status != http.StatusUnauthorized || req.noAuth {
		return c.finish(op, resp)
	}

	if _, err := c.refreshFor(ctx, gen); err != nil {
		if errors.Is(err, ErrNoRefreshToken) {
			return resp, statusError(op, resp, KindUnauthorized)
		}
		return resp, err
	}

	retry, retryGen, err := c.send(ctx, req)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindConnectivity, Err: err}
	}
	if retry.Status == http.StatusUnauthorized {
		apiErr := statusError(op, retry, KindUnauthorized)
		apiErr.Err = ErrSessionExpired
		c.expire(ctx, retryGen, apiErr)
		return retry, apiErr
	}
	return c.finish(op, retry)
}

func newRequest(method, path string, body any, opts []RequestOption) (*request, error) {
	req := &request{
		method:      strings.ToUpper(method),
		path:        strings.TrimLeft(path, "/"),
		contentType: contentTypeJSON,
		query:       url.Values{},
		header:      http.Header{},
	}
	if req.method == "" {
		req.method = http.MethodGet
	}

	switch b := body.(type) {
	case nil:
		req.contentType = ""
	case []byte:
		req.body = b
	case string:
		req.body = []byte(b)
	case *Multipart:
		data, contentType, err := b.encode()
		if err != nil {
			return nil, fmt.Errorf("[apiclient.Do] encode multipart body: %w", err)
		}
		req.body = data
		req.contentType = contentType
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, fmt.Errorf("[apiclient.Do] read body: %w", err)
		}
		req.body = data
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("[apiclient.Do] encode body: %w", err)
		}
		req.body = data
	}

	for _, opt := range opts {
		opt(req)
	}
	if req.requestID == "" {
		req.requestID = uuid.NewString()
	}
	return req, nil
}

func (r *request) op() string {
	return r.method + " " + r.path
}

func (c *Client) resolve(path string, query url.Values) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	u := c.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// send puts req on the wire once with the current credential and returns the
// generation of the credential it carried.
func (c *Client) send(ctx context.Context, req *request) (*Response, uint64, error) {
	u, err := c.resolve(req.path, req.query)
	if err != nil {
		return nil, 0, fmt.Errorf("[Client.send] invalid path %q: %w", req.path, err)
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, 0, fmt.Errorf("[Client.send] build request: %w", err)
	}
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set(HeaderRequestID, req.requestID)

	credential, gen := c.snapshot()
	if !req.noAuth && credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+credential)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.request(req.method, 0)
		c.logger.Debug().Err(err).
			Str("method", req.method).Str("path", req.path).Str("request_id", req.requestID).
			Msg("request failed")
		return nil, gen, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.metrics.request(req.method, 0)
		return nil, gen, fmt.Errorf("[Client.send] read response: %w", err)
	}

	c.metrics.request(req.method, httpResp.StatusCode)
	c.logger.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Int("status", httpResp.StatusCode).
		Bool("bearer", !req.noAuth && credential != "").
		Str("request_id", req.requestID).
		Msg("request")

	return &Response{
		Status:    httpResp.StatusCode,
		Header:    httpResp.Header,
		Body:      data,
		RequestID: req.requestID,
	}, gen, nil
}

func (c *Client) finish(op string, resp *Response) (*Response, error) {
	if resp.OK() {
		return resp, nil
	}
	kind := KindApplication
	if resp.Status == http.StatusUnauthorized {
		kind = KindUnauthorized
	}
	return resp, statusError(op, resp, kind)
}

func statusError(op string, resp *Response, kind Kind) *Error {
	apiErr := &Error{Op: op, Kind: kind, Status: resp.Status}
	if len(bytes.TrimSpace(resp.Body)) > 0 {
		var detail any
		if err := json.Unmarshal(resp.Body, &detail); err == nil {
			apiErr.Detail = detail
		}
	}
	return apiErr
}
