package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"devicelink/pkg/config"
)

const DefaultTimeout = 3 * time.Second

// Client talks to one device of an Alpaca server.
type Client struct {
	base     string
	http     *http.Client
	clientID uint32
	txID     atomic.Uint32
	logger   log.FieldLogger
}

// NewClient builds the client for deviceType from cfg. A nil httpClient
// gets one with DefaultTimeout.
func NewClient(cfg config.FrameworkConfig, deviceType string, httpClient *http.Client, logger log.FieldLogger) *Client {
	cfg = cfg.WithDefaults(config.FrameworkAlpaca)
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	base := fmt.Sprintf("%s://%s/api/v%d/%s/%d",
		cfg.Protocol, cfg.Address, cfg.APIVersion, strings.ToLower(deviceType), cfg.DeviceNumber)

	return &Client{
		base:     base,
		http:     httpClient,
		clientID: uuid.New().ID(),
		logger:   logger.WithField("alpaca", base),
	}
}

// BaseURL returns {protocol}://{address}/api/v{n}/{type}/{number}.
func (c *Client) BaseURL() string {
	return c.base
}

// Get reads attribute. params may be nil.
func (c *Client) Get(ctx context.Context, attribute string, params url.Values) (json.RawMessage, error) {
	q := c.transaction(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/"+attribute+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, attribute)
}

// Put writes attribute with form encoded params.
func (c *Client) Put(ctx context.Context, attribute string, params url.Values) (json.RawMessage, error) {
	form := c.transaction(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.base+"/"+attribute, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, attribute)
}

func (c *Client) transaction(params url.Values) url.Values {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("ClientID", strconv.FormatUint(uint64(c.clientID), 10))
	q.Set("ClientTransactionID", strconv.FormatUint(uint64(c.txID.Add(1)), 10))
	return q
}

func (c *Client) do(req *http.Request, attribute string) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alpaca %s %s: %w", req.Method, attribute, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("alpaca %s %s: %w", req.Method, attribute, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var r reply
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("alpaca %s %s: invalid response: %w", req.Method, attribute, err)
	}
	if r.ErrorNumber != 0 {
		return nil, &Error{Status: resp.StatusCode, Number: r.ErrorNumber, Message: r.ErrorMessage}
	}

	c.logger.WithFields(log.Fields{
		"method":    req.Method,
		"attribute": attribute,
		"value":     string(r.Value),
	}).Trace("alpaca response")
	return r.Value, nil
}

// GetFloat, GetBool, GetInt and GetString read and decode attribute.

func (c *Client) GetFloat(ctx context.Context, attribute string) (float64, error) {
	raw, err := c.Get(ctx, attribute, nil)
	if err != nil {
		return 0, err
	}
	return Decode[float64](raw)
}

func (c *Client) GetBool(ctx context.Context, attribute string) (bool, error) {
	raw, err := c.Get(ctx, attribute, nil)
	if err != nil {
		return false, err
	}
	return Decode[bool](raw)
}

func (c *Client) GetInt(ctx context.Context, attribute string) (int, error) {
	raw, err := c.Get(ctx, attribute, nil)
	if err != nil {
		return 0, err
	}
	return Decode[int](raw)
}

func (c *Client) GetString(ctx context.Context, attribute string) (string, error) {
	raw, err := c.Get(ctx, attribute, nil)
	if err != nil {
		return "", err
	}
	return Decode[string](raw)
}
