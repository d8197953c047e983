// Package practicum is the HTTP client for the homework-review status API.
package practicum

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"

	logx "homeworkbot/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	DefaultTimeout  = 30 * time.Second

	authScheme    = "OAuth"
	paramFromDate = "from_date"
)

type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Client fetches homework statuses changed since a Unix timestamp.
// It never retries; the poll loop interval is the retry policy.
type Client struct {
	endpoint string
	http     *resty.Client
	log      logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rc := resty.New().
		SetTimeout(timeout).
		SetAuthScheme(authScheme).
		SetAuthToken(cfg.Token).
		SetHeader("Accept", "application/json").
		SetRetryCount(0).
		SetLogger(restyLogger{log: log})

	return &Client{endpoint: endpoint, http: rc, log: log}
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string { return c.endpoint }

// Fetch performs GET endpoint?from_date=since and returns the decoded JSON body.
//
// Errors are *ConnectionError, *HTTPStatusError or *ParseError. Failures are not
// logged here; the caller reports them.
func (c *Client) Fetch(ctx context.Context, since int64) (any, error) {
	if since < 0 {
		return nil, ErrNegativeTimestamp
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.log.Info("requesting homework statuses",
		logx.String("endpoint", c.endpoint),
		logx.Int64("from_date", since),
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam(paramFromDate, strconv.FormatInt(since, 10)).
		Get(c.endpoint)
	if err != nil {
		return nil, &ConnectionError{Endpoint: c.endpoint, Err: err}
	}
	if code := resp.StatusCode(); code != http.StatusOK {
		return nil, &HTTPStatusError{Endpoint: c.endpoint, Code: code}
	}

	body := resp.Body()
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &ParseError{Err: err}
	}

	c.log.Info("homework statuses received",
		logx.Int("status", resp.StatusCode()),
		logx.Int("bytes", len(body)),
		logx.Duration("elapsed", resp.Time()),
	)
	return out, nil
}

// restyLogger routes resty's internal warnings into logx.
type restyLogger struct{ log logx.Logger }

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), logx.String("comp", "resty"))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), logx.String("comp", "resty"))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), logx.String("comp", "resty"))
}
