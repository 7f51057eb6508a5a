// Package geo resolves a client IP to a coarse location descriptor such as
// "Berlin, Germany". Lookups are best effort: every failure yields "".
package geo

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	CB         *gobreaker.CircuitBreaker
	Log        *zap.Logger
	// Timeout bounds one shared lookup, independent of any caller.
	Timeout time.Duration

	cache *lru.Cache[string, string]
	group singleflight.Group
}

// Option configures the Client.
type Option func(*Client)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.CB = cb }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.Log = log }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// New returns a client for a lookup service answering GET {baseURL}/{ip}
// with {"city","region","country"}. An empty baseURL disables lookups.
func New(baseURL string, cacheSize int, opts ...Option) (*Client, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
		Log:        zap.NewNop(),
		Timeout:    2 * time.Second,
		cache:      cache,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type lookupResponse struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

func (r lookupResponse) descriptor() string {
	var parts []string
	for _, p := range []string{r.City, r.Region, r.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Locate never fails. Private, loopback and unparsable addresses are not
// looked up. Concurrent calls for one address share a single lookup that
// outlives any one caller; a caller whose ctx ends gets "".
func (c *Client) Locate(ctx context.Context, ip string) string {
	if c == nil || c.BaseURL == "" {
		return ""
	}
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil || addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() {
		return ""
	}
	key := addr.String()
	if v, ok := c.cache.Get(key); ok {
		return v
	}

	lookupCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		loc, err := c.fetch(lookupCtx, key)
		if err != nil {
			return "", err
		}
		c.cache.Add(key, loc)
		return loc, nil
	})
	select {
	case <-ctx.Done():
		return ""
	case res := <-ch:
		if res.Err != nil {
			c.Log.Debug("geo lookup failed", zap.String("ip", key), zap.Error(res.Err))
			return ""
		}
		return res.Val.(string)
	}
}

func (c *Client) fetch(ctx context.Context, ip string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	if c.CB == nil {
		return c.doLookup(ctx, ip)
	}
	v, err := c.CB.Execute(func() (interface{}, error) {
		return c.doLookup(ctx, ip)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) doLookup(ctx context.Context, ip string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/"+url.PathEscape(ip), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo: status %d", resp.StatusCode)
	}
	var out lookupResponse
	if err := sonic.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("geo: decode: %w", err)
	}
	return out.descriptor(), nil
}

// ClientIP extracts the caller address from X-Forwarded-For, X-Real-Ip or
// the connection, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
