package sonos

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultPort is the TCP control port every speaker listens on
	DefaultPort = 1400

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 3 * time.Second

	// DefaultMaxRetries is zero: discovery probes thousands of addresses and a
	// retry per silent address would multiply the scan time.
	DefaultMaxRetries = 0

	// DefaultRetryDelay is the delay between retry attempts when retries are enabled
	DefaultRetryDelay = 250 * time.Millisecond

	// DescriptionPath serves the UPnP device description
	DescriptionPath = "/xml/device_description.xml"

	devicePropertiesPath    = "/DeviceProperties/Control"
	devicePropertiesService = "urn:schemas-upnp-org:service:DeviceProperties:1"

	zoneGroupTopologyPath    = "/ZoneGroupTopology/Control"
	zoneGroupTopologyService = "urn:schemas-upnp-org:service:ZoneGroupTopology:1"

	// maxBodySize bounds how much of a response we read; a topology document
	// for a large household is well under this.
	maxBodySize = 1 << 20
)

// Client talks to one speaker's HTTP control surface
type Client struct {
	// BaseURL is the base URL for the speaker (e.g., "http://192.168.1.20:1400")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the maximum number of retry attempts for retryable errors
	MaxRetries int

	// RetryDelay is the delay between retry attempts
	RetryDelay time.Duration

	host string
}

// NewClient creates a client for the speaker at ip:port
func NewClient(ip string, port int) *Client {
	return NewClientWithURL(fmt.Sprintf("http://%s:%d", ip, port))
}

// NewClientWithURL creates a client with a full base URL
func NewClientWithURL(baseURL string) *Client {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil {
		host = u.Hostname()
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		host:       host,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// DeviceDescription fetches and decodes the speaker's UPnP device description
func (c *Client) DeviceDescription(ctx context.Context) (*DeviceDescription, error) {
	var desc *DeviceDescription
	err := c.withRetry(ctx, func() error {
		body, err := c.get(ctx, DescriptionPath)
		if err != nil {
			return err
		}
		var d DeviceDescription
		if err := xml.Unmarshal(body, &d); err != nil {
			return NewParseError(c.host, "failed to parse device description", err)
		}
		desc = &d
		return nil
	})
	return desc, err
}

// HouseholdID returns the identifier shared by every speaker in one household
func (c *Client) HouseholdID(ctx context.Context) (string, error) {
	var id string
	err := c.withRetry(ctx, func() error {
		var resp householdIDResponse
		if err := c.call(ctx, devicePropertiesPath, devicePropertiesService, "GetHouseholdID", &resp); err != nil {
			return err
		}
		if resp.HouseholdID == "" {
			return NewParseError(c.host, "empty household id in response", nil)
		}
		id = resp.HouseholdID
		return nil
	})
	return id, err
}

// ZoneGroupState returns the household topology as seen by this speaker
func (c *Client) ZoneGroupState(ctx context.Context) (*ZoneGroupState, error) {
	var state *ZoneGroupState
	err := c.withRetry(ctx, func() error {
		var resp zoneGroupStateResponse
		if err := c.call(ctx, zoneGroupTopologyPath, zoneGroupTopologyService, "GetZoneGroupState", &resp); err != nil {
			return err
		}
		s, err := ParseZoneGroupState([]byte(resp.ZoneGroupState))
		if err != nil {
			return NewParseError(c.host, "failed to parse zone group state", err)
		}
		state = s
		return nil
	})
	return state, err
}

// withRetry runs op, retrying only errors marked retryable
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(c.RetryDelay):
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
	}
	return lastErr
}

// get performs a single GET and returns the body of a 200 response
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, NewNetworkError(c.host, "failed to create GET request", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError(c.host, "GET "+path+" failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(c.host, resp.StatusCode, fmt.Sprintf("GET %s returned status %d", path, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, NewNetworkError(c.host, "failed to read response body", err)
	}
	return body, nil
}

// call invokes a SOAP action with no arguments and decodes the action
// response element into out
func (c *Client) call(ctx context.Context, path, service, action string, out any) error {
	envelope := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>`+
		`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`+
		`<s:Body><u:%[1]s xmlns:u="%[2]s"></u:%[1]s></s:Body></s:Envelope>`, action, service)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewBufferString(envelope))
	if err != nil {
		return NewNetworkError(c.host, "failed to create SOAP request", err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", fmt.Sprintf(`"%s#%s"`, service, action))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return NewNetworkError(c.host, action+" failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return NewNetworkError(c.host, "failed to read SOAP response", err)
	}

	// Faults come back as 500 with an envelope; anything else non-200 is
	// not a speaker talking UPnP.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusInternalServerError {
		return NewHTTPError(c.host, resp.StatusCode, fmt.Sprintf("%s returned status %d", action, resp.StatusCode))
	}

	var env soapEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return NewParseError(c.host, "failed to parse SOAP envelope", err)
	}
	if env.Body.Fault != nil {
		return NewFaultError(c.host, action, env.Body.Fault)
	}
	if resp.StatusCode != http.StatusOK {
		return NewHTTPError(c.host, resp.StatusCode, fmt.Sprintf("%s returned status %d", action, resp.StatusCode))
	}

	if err := xml.Unmarshal(env.Body.Content, out); err != nil {
		return NewParseError(c.host, "failed to parse "+action+" response", err)
	}
	return nil
}
