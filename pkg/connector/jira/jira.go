// Package jira implements a connector for the Jira REST API (Cloud and Data
// Center).
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

// Kind is the connection kind served by this connector.
const Kind = "jira"

// Option keys understood by Init.
const (
	OptionURL            = "url"
	OptionUsername       = "username"
	OptionAPIToken       = "api_token"
	OptionAccessToken    = "access_token"
	OptionRequestTimeout = "request_timeout_seconds"
)

const (
	defaultTimeout = 100 * time.Second
	searchPageSize = 100
	changelogSize  = 100
)

var issueKeyPattern = regexp.MustCompile(`^(?i:[a-z][a-z0-9_]*-\d+|\d+)$`)

// APIError is a non-2xx response from Jira.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira API error (%d): %s", e.StatusCode, e.Body)
}

// ErrNotConfigured is returned when the connector is used before Init.
var ErrNotConfigured = errors.New("jira connector not initialized")

// Connector talks to one Jira site.
type Connector struct {
	baseURL string
	client  *http.Client

	mu        sync.Mutex
	wellKnown map[string]string
}

// New creates an uninitialized connector.
func New() *Connector {
	return &Connector{}
}

// Init reads the site URL and credentials, falling back to JIRA_URL,
// JIRA_USERNAME, JIRA_API_TOKEN and JIRA_ACCESS_TOKEN. A username selects
// basic auth with the API token; without one the token is sent as a bearer
// token through an OAuth2 static token source.
func (c *Connector) Init(options map[string]string) error {
	base := optionOrEnv(options, OptionURL, "JIRA_URL")
	username := optionOrEnv(options, OptionUsername, "JIRA_USERNAME")
	apiToken := optionOrEnv(options, OptionAPIToken, "JIRA_API_TOKEN")
	accessToken := optionOrEnv(options, OptionAccessToken, "JIRA_ACCESS_TOKEN")

	if base == "" {
		return fmt.Errorf("jira url is required (option '%s' or env JIRA_URL)", OptionURL)
	}
	if !strings.HasPrefix(base, "http") {
		base = "https://" + base
	}

	timeout := defaultTimeout
	if raw := options[OptionRequestTimeout]; raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return fmt.Errorf("invalid %s %q", OptionRequestTimeout, raw)
		}
		timeout = time.Duration(secs) * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	switch {
	case username != "" && apiToken != "":
		httpClient.Transport = &basicAuthTransport{username: username, password: apiToken}
	case accessToken != "" || apiToken != "":
		token := accessToken
		if token == "" {
			token = apiToken
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		httpClient.Timeout = timeout
	default:
		return fmt.Errorf("jira credentials are required (username and api_token, or access_token)")
	}

	c.baseURL = strings.TrimRight(base, "/")
	c.client = httpClient
	c.wellKnown = nil
	return nil
}

func (c *Connector) Kind() string         { return Kind }
func (c *Connector) ItemViewPath() string { return "/browse/" }

// CheckAuth asks Jira who the configured credentials belong to.
func (c *Connector) CheckAuth(ctx context.Context) error {
	var me struct {
		AccountID string `json:"accountId"`
		Name      string `json:"name"`
	}
	return c.doJSON(ctx, http.MethodGet, "/rest/api/2/myself", nil, nil, &me)
}

// ValidateItemID accepts issue keys such as PROJ-123 and numeric issue ids.
func (c *Connector) ValidateItemID(id string) error {
	if !issueKeyPattern.MatchString(id) {
		return fmt.Errorf("invalid jira issue id %q", id)
	}
	return nil
}

// UpdateField sets one field on an issue. Numbers are sent as JSON numbers.
func (c *Connector) UpdateField(ctx context.Context, id, fieldID string, value writeback.Value) error {
	var v any = value.Text
	if value.Kind == writeback.KindNumber {
		v = value.Number
	}
	body := map[string]any{
		"fields": map[string]any{fieldID: v},
	}
	return c.doJSON(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(id), nil, body, nil)
}

func (c *Connector) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if c.client == nil {
		return ErrNotConfigured
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(clone)
}

func optionOrEnv(options map[string]string, key, env string) string {
	if v := options[key]; v != "" {
		return v
	}
	return os.Getenv(env)
}
