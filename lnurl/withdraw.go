package lnurl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/breez/breez-sdk-go/invoice"
	"golang.org/x/net/context/ctxhttp"
)

const (
	// DefaultTimeout bounds a callback request.
	DefaultTimeout = 30 * time.Second

	// maxResponseSize bounds the callback response body we read.
	maxResponseSize = 64 * 1024

	statusOK    = "OK"
	statusError = "ERROR"
)

var (
	// ErrGeneric is returned for validation failures and malformed
	// endpoint responses.
	ErrGeneric = errors.New("lnurl error")

	// ErrInvalidURI is returned when the callback isn't an absolute http
	// url.
	ErrInvalidURI = errors.New("invalid lnurl uri")

	// ErrInvalidInvoice is returned when the invoice can't be decoded.
	ErrInvalidInvoice = errors.New("invalid invoice")

	// ErrServiceConnectivity is returned when the endpoint can't be
	// reached.
	ErrServiceConnectivity = errors.New("lnurl service connectivity")
)

// WithdrawRequestData holds the parameters an LNURL-withdraw endpoint
// declared in its first response.
type WithdrawRequestData struct {
	Callback           string `json:"callback"`
	K1                 string `json:"k1"`
	DefaultDescription string `json:"defaultDescription"`

	// MinWithdrawable and MaxWithdrawable are inclusive msat bounds.
	MinWithdrawable uint64 `json:"minWithdrawable"`
	MaxWithdrawable uint64 `json:"maxWithdrawable"`
}

// ErrorData is the reason an endpoint gave for refusing a request.
type ErrorData struct {
	Reason string `json:"reason"`
}

// WithdrawResult is the outcome of a withdraw callback. Exactly one of
// Invoice and Error is set.
type WithdrawResult struct {
	// Invoice is the invoice the endpoint accepted.
	Invoice *invoice.LNInvoice

	// Error is the endpoint's reason for refusing the invoice.
	Error *ErrorData
}

// OK returns true if the endpoint accepted the invoice.
func (r *WithdrawResult) OK() bool {
	return r.Error == nil
}

// callbackStatus is the tagged response of an LNURL callback.
type callbackStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Config holds the dependencies of a Client.
type Config struct {
	// HTTPClient defaults to a client with DefaultTimeout.
	HTTPClient *http.Client

	// UserAgent is sent with every request if set.
	UserAgent string
}

// Client performs the LNURL callbacks.
type Client struct {
	cfg *Config
}

// NewClient returns a new LNURL client.
func NewClient(cfg *Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{cfg: cfg}
}

// ValidateWithdrawAmount checks that inv carries an amount within the
// bounds declared by the endpoint.
func ValidateWithdrawAmount(req *WithdrawRequestData,
	inv *invoice.LNInvoice) error {

	if inv.AmountMsat == nil {
		return fmt.Errorf("%w: Expected invoice amount, but found none",
			ErrGeneric)
	}

	amount := *inv.AmountMsat
	if amount < req.MinWithdrawable {
		return fmt.Errorf("%w: Amount is smaller than the minimum "+
			"allowed by the LNURL-withdraw endpoint", ErrGeneric)
	}
	if amount > req.MaxWithdrawable {
		return fmt.Errorf("%w: Amount is bigger than the maximum "+
			"allowed by the LNURL-withdraw endpoint", ErrGeneric)
	}

	return nil
}

// BuildWithdrawCallbackURL appends the k1 nonce and the invoice to the
// endpoint's callback url. Query parameters already in the callback are
// kept as they are.
func BuildWithdrawCallbackURL(req *WithdrawRequestData,
	inv *invoice.LNInvoice) (string, error) {

	u, err := url.Parse(req.Callback)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %v", ErrInvalidURI, req.Callback)
	}

	params := url.Values{}
	params.Add("k1", req.K1)
	params.Add("pr", inv.Bolt11)

	if u.RawQuery != "" {
		u.RawQuery += "&"
	}
	u.RawQuery += params.Encode()

	return u.String(), nil
}

// Withdraw validates inv against the endpoint's bounds and hands it to
// the endpoint's callback. Nothing is sent if the validation fails.
func (c *Client) Withdraw(ctx context.Context, req *WithdrawRequestData,
	inv *invoice.LNInvoice) (*WithdrawResult, error) {

	if err := ValidateWithdrawAmount(req, inv); err != nil {
		return nil, err
	}

	callback, err := BuildWithdrawCallbackURL(req, inv)
	if err != nil {
		return nil, err
	}

	status, err := c.get(ctx, callback)
	if err != nil {
		return nil, err
	}

	switch strings.ToUpper(status.Status) {
	case statusOK:
		log.Infof("Withdraw of %v msat accepted by %v",
			*inv.AmountMsat, hostOf(callback))

		return &WithdrawResult{Invoice: inv}, nil

	case statusError:
		log.Warnf("Withdraw refused by %v: %v", hostOf(callback),
			status.Reason)

		return &WithdrawResult{
			Error: &ErrorData{Reason: status.Reason},
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown callback status %q",
			ErrGeneric, status.Status)
	}
}

// WithdrawBolt11 decodes bolt11 and withdraws with it.
func (c *Client) WithdrawBolt11(ctx context.Context,
	req *WithdrawRequestData, bolt11 string) (*WithdrawResult, error) {

	inv, err := invoice.Parse(bolt11)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInvoice, err)
	}

	return c.Withdraw(ctx, req, inv)
}

// FetchWithdrawRequest queries an LNURL-withdraw endpoint for its request
// data. endpoint is the already decoded http url.
func (c *Client) FetchWithdrawRequest(ctx context.Context,
	endpoint string) (*WithdrawRequestData, error) {

	resp, err := c.do(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var data struct {
		WithdrawRequestData

		Tag    string `json:"tag"`
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize))
	if err := dec.Decode(&data); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: http status %v",
				ErrServiceConnectivity, resp.StatusCode)
		}

		return nil, fmt.Errorf("%w: invalid withdraw request: %v",
			ErrGeneric, err)
	}

	switch {
	case strings.EqualFold(data.Status, statusError):
		return nil, fmt.Errorf("%w: %v", ErrGeneric, data.Reason)

	case data.Tag != "withdrawRequest":
		return nil, fmt.Errorf("%w: unexpected tag %q", ErrGeneric,
			data.Tag)
	}

	return &data.WithdrawRequestData, nil
}

// get performs the callback request and decodes its status. An endpoint
// that can't be reached, or answers with a failing http status and no
// status body, is a connectivity error.
func (c *Client) get(ctx context.Context,
	callback string) (*callbackStatus, error) {

	resp, err := c.do(ctx, callback)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceConnectivity, err)
	}

	var status callbackStatus
	decodeErr := json.Unmarshal(body, &status)
	if decodeErr == nil && status.Status != "" {
		return &status, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http status %v",
			ErrServiceConnectivity, resp.StatusCode)
	}

	return nil, fmt.Errorf("%w: invalid callback response: %s", ErrGeneric,
		body)
}

// do sends a GET request to rawURL.
func (c *Client) do(ctx context.Context, rawURL string) (*http.Response,
	error) {

	log.Debugf("Calling %v", hostOf(rawURL))

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := ctxhttp.Do(ctx, c.cfg.HTTPClient, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceConnectivity, err)
	}

	return resp, nil
}

// hostOf returns the host of a url for logging, the query carries the
// invoice and the nonce.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return u.Host
}
