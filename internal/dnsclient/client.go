package dnsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	defaultDoHURL  = "https://dns.google/resolve"
	defaultTimeout = 3 * time.Second
	maxDoHBody     = 1 << 20

	rcodeNXDomain = 3
)

// DefaultResolvers are used for the UDP fallback when DoH is unreachable.
var DefaultResolvers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// ErrNoResponse means neither DoH nor any UDP resolver answered.
var ErrNoResponse = errors.New("dns: no resolver answered")

// Answer is a single resource record in presentation form.
type Answer struct {
	Type uint16
	Data string
	TTL  uint32
}

// Client resolves records over DNS-over-HTTPS and falls back to plain DNS.
type Client struct {
	dohURL     string
	httpClient *http.Client
	resolvers  []string
	timeout    time.Duration
	userAgent  string
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithDoHURL points the client at a JSON DoH endpoint (Google /resolve format).
func WithDoHURL(u string) Option {
	return func(c *Client) { c.dohURL = u }
}

// WithHTTPClient replaces the HTTP client used for DoH.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithResolvers sets host:port UDP resolvers; an empty list disables the fallback.
func WithResolvers(r []string) Option {
	return func(c *Client) { c.resolvers = r }
}

// WithTimeout bounds each individual query.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) { c.timeout = t }
}

// WithLogger attaches a logger for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithUserAgent sets the DoH request User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New builds a client with sensible defaults.
func New(opts ...Option) *Client {
	c := &Client{
		dohURL:     defaultDoHURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		resolvers:  DefaultResolvers,
		timeout:    defaultTimeout,
		userAgent:  "DomainScore/1.0",
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Query returns the answers of the given type. NXDOMAIN and empty answers are
// not errors; an error means no resolver could be reached.
func (c *Client) Query(ctx context.Context, recordType, name string) ([]Answer, error) {
	qtype, ok := dns.StringToType[strings.ToUpper(recordType)]
	if !ok {
		return nil, fmt.Errorf("unsupported record type %q", recordType)
	}

	answers, err := c.queryDoH(ctx, name, qtype)
	if err == nil {
		return answers, nil
	}
	c.logger.Debug("doh query failed", "name", name, "type", recordType, "error", err)

	if len(c.resolvers) == 0 {
		return nil, err
	}

	for _, server := range c.resolvers {
		answers, uerr := c.queryUDP(ctx, name, qtype, server)
		if uerr == nil {
			return answers, nil
		}
		c.logger.Debug("udp query failed", "name", name, "server", server, "error", uerr)
		err = uerr
	}
	return nil, fmt.Errorf("%w: %v", ErrNoResponse, err)
}

type dohResponse struct {
	Status int `json:"Status"`
	Answer []struct {
		Type uint16 `json:"type"`
		Data string `json:"data"`
		TTL  uint32 `json:"TTL"`
	} `json:"Answer"`
}

func (c *Client) queryDoH(ctx context.Context, name string, qtype uint16) ([]Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.dohURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build doh request: %w", err)
	}
	q := url.Values{}
	q.Set("name", name)
	q.Set("type", dns.TypeToString[qtype])
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/dns-json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("doh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("doh returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDoHBody))
	if err != nil {
		return nil, fmt.Errorf("read doh body: %w", err)
	}
	return parseDoHResponse(body)
}

func parseDoHResponse(body []byte) ([]Answer, error) {
	var data dohResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode doh body: %w", err)
	}

	if data.Status == rcodeNXDomain {
		return nil, nil
	}
	if data.Status != 0 {
		return nil, fmt.Errorf("doh rcode %d", data.Status)
	}

	answers := make([]Answer, 0, len(data.Answer))
	for _, a := range data.Answer {
		rd := strings.TrimSpace(a.Data)
		if rd == "" {
			continue
		}
		if a.Type == dns.TypeTXT {
			rd = unquoteTXT(rd)
		}
		answers = append(answers, Answer{Type: a.Type, Data: rd, TTL: a.TTL})
	}
	return answers, nil
}

// unquoteTXT joins the character-strings of a TXT record: `"a" "b"` -> `ab`.
func unquoteTXT(s string) string {
	if !strings.HasPrefix(s, `"`) {
		return s
	}
	s = strings.ReplaceAll(s, `" "`, "")
	return strings.Trim(s, `"`)
}

func (c *Client) queryUDP(ctx context.Context, name string, qtype uint16, server string) ([]Answer, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: c.timeout}
	r, _, err := client.ExchangeContext(ctx, msg, server)
	if err == nil && r != nil && r.Truncated {
		client.Net = "tcp"
		r, _, err = client.ExchangeContext(ctx, msg, server)
	}
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNoResponse
	}
	if r.Rcode == dns.RcodeNameError {
		return nil, nil
	}
	if r.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("rcode %s", dns.RcodeToString[r.Rcode])
	}

	answers := make([]Answer, 0, len(r.Answer))
	for _, rr := range r.Answer {
		data := rrData(rr)
		if data == "" {
			continue
		}
		answers = append(answers, Answer{Type: rr.Header().Rrtype, Data: data, TTL: rr.Header().Ttl})
	}
	return answers, nil
}

func rrData(rr dns.RR) string {
	switch v := rr.(type) {
	case *dns.A:
		return v.A.String()
	case *dns.AAAA:
		return v.AAAA.String()
	case *dns.MX:
		return fmt.Sprintf("%d %s", v.Preference, v.Mx)
	case *dns.TXT:
		return strings.Join(v.Txt, "")
	case *dns.NS:
		return v.Ns
	case *dns.CNAME:
		return v.Target
	default:
		full := rr.String()
		return strings.TrimSpace(strings.TrimPrefix(full, rr.Header().String()))
	}
}
