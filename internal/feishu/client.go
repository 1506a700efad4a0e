package feishu

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"ledgerd/internal/models"
	"ledgerd/internal/providers"
	"ledgerd/internal/structures"
)

const (
	defaultBaseURL  = "https://open.feishu.cn"
	defaultTimeout  = 10 * time.Second
	defaultPageSize = 500
)

// GatewayInterface is the remote tabular-database API surface the cache
// core consumes. Every call is a network round-trip; a transport failure
// surfaces as a plain error, a remote-reported one as *APIError.
type GatewayInterface interface {
	IssueToken(ctx context.Context) (string, error)
	ListCategories(ctx context.Context, token string) ([]models.Category, error)
	SearchRecords(ctx context.Context, token string, year, month int) ([]models.RemoteRecord, error)
	CreateRecord(ctx context.Context, token string, fields map[string]interface{}) (string, error)
	UpdateRecord(ctx context.Context, token, recordID string, fields map[string]interface{}) error
	DeleteRecord(ctx context.Context, token, recordID string) error
	UploadFile(ctx context.Context, token, filename string, data []byte) (string, error)
}

type Client struct {
	httpClient *http.Client
	conf       *structures.Config
	logger     providers.Logger
	metrics    providers.MetricsProviderInterface
	baseURL    string
	pageSize   int
}

func NewClient(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) GatewayInterface {
	baseURL := conf.Feishu.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := conf.Feishu.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pageSize := conf.Feishu.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		conf:       conf,
		logger:     logger,
		metrics:    metrics,
		baseURL:    baseURL,
		pageSize:   pageSize,
	}
}

func (c *Client) observe(operation string, start time.Time, err error) {
	c.metrics.ObserveRemoteCallDuration(operation, time.Since(start))
	if err != nil {
		c.metrics.IncRemoteErrors(operation)
	}
}

// RecordFields translates a draft into the remote column bag used by
// create and update calls.
func RecordFields(d models.RecordDraft) map[string]interface{} {
	fields := map[string]interface{}{
		FieldLocation: d.Location,
		FieldNote:     d.Description,
		FieldDate:     d.Timestamp,
		FieldCategory: d.Icon + d.Category,
		FieldAmount:   d.Amount.InexactFloat64(),
	}
	if len(d.PhotoTokens) > 0 {
		photos := make([]map[string]string, 0, len(d.PhotoTokens))
		for _, token := range d.PhotoTokens {
			photos = append(photos, map[string]string{"file_token": token})
		}
		fields[FieldPhotos] = photos
	}
	return fields
}

func (c *Client) recordsURL() string {
	return fmt.Sprintf("%s/open-apis/bitable/v1/apps/%s/tables/%s/records",
		c.baseURL, c.conf.Feishu.AppToken, c.conf.Feishu.RecordTable)
}

func (c *Client) categoriesURL() string {
	return fmt.Sprintf("%s/open-apis/bitable/v1/apps/%s/tables/%s/records",
		c.baseURL, c.conf.Feishu.AppToken, c.conf.Feishu.CategoryTable)
}

func (c *Client) IssueToken(ctx context.Context) (token string, err error) {
	start := time.Now()
	defer func() { c.observe("issue_token", start, err) }()

	payload := map[string]string{
		"app_id":     c.conf.Feishu.AppID,
		"app_secret": c.conf.Feishu.AppSecret,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/open-apis/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tok.Code != 0 || tok.TenantAccessToken == "" {
		return "", &APIError{Code: tok.Code, Msg: tok.Msg}
	}

	c.logger.Debugf(providers.TypeSync, "issued tenant access token, expire=%ds", tok.Expire)
	return tok.TenantAccessToken, nil
}

func (c *Client) SearchRecords(ctx context.Context, token string, year, month int) (records []models.RemoteRecord, err error) {
	start := time.Now()
	defer func() { c.observe("search_records", start, err) }()

	request := searchRequest{
		Filter: &searchFilter{
			Conjunction: "and",
			Conditions: []searchCondition{
				{FieldName: FieldYear, Operator: "is", Value: []string{strconv.Itoa(year)}},
				{FieldName: FieldMonth, Operator: "is", Value: []string{strconv.Itoa(month)}},
			},
		},
		Sort: []searchSort{{FieldName: FieldDate, Desc: true}},
	}

	items, err := c.searchAll(ctx, token, c.recordsURL()+"/search", request)
	if err != nil {
		return nil, err
	}

	records = make([]models.RemoteRecord, 0, len(items))
	for _, item := range items {
		records = append(records, item.toRemote())
	}
	return records, nil
}

func (c *Client) ListCategories(ctx context.Context, token string) (categories []models.Category, err error) {
	start := time.Now()
	defer func() { c.observe("list_categories", start, err) }()

	items, err := c.searchAll(ctx, token, c.categoriesURL()+"/search", searchRequest{})
	if err != nil {
		return nil, err
	}

	categories = make([]models.Category, 0, len(items))
	for _, item := range items {
		categories = append(categories, item.toCategory())
	}
	return categories, nil
}

// searchAll follows the page token until the remote side reports no more
// rows.
func (c *Client) searchAll(ctx context.Context, token, url string, request searchRequest) ([]rawRecord, error) {
	var items []rawRecord
	pageToken := ""

	for {
		pagedURL := fmt.Sprintf("%s?page_size=%d", url, c.pageSize)
		if pageToken != "" {
			pagedURL += "&page_token=" + pageToken
		}

		data, err := c.doJSON(ctx, http.MethodPost, pagedURL, token, request)
		if err != nil {
			return nil, err
		}

		var page searchData
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("decoding search page: %w", err)
		}
		items = append(items, page.Items...)

		if !page.HasMore || page.PageToken == "" {
			return items, nil
		}
		pageToken = page.PageToken
	}
}

func (c *Client) CreateRecord(ctx context.Context, token string, fields map[string]interface{}) (recordID string, err error) {
	start := time.Now()
	defer func() { c.observe("create_record", start, err) }()

	data, err := c.doJSON(ctx, http.MethodPost, c.recordsURL(), token, recordPayload{Fields: fields})
	if err != nil {
		return "", err
	}

	var created recordData
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("decoding create response: %w", err)
	}
	if created.Record.RecordID == "" {
		return "", &APIError{Msg: "create response carries no record id"}
	}
	return created.Record.RecordID, nil
}

func (c *Client) UpdateRecord(ctx context.Context, token, recordID string, fields map[string]interface{}) (err error) {
	start := time.Now()
	defer func() { c.observe("update_record", start, err) }()

	_, err = c.doJSON(ctx, http.MethodPut, c.recordsURL()+"/"+recordID, token, recordPayload{Fields: fields})
	return err
}

func (c *Client) DeleteRecord(ctx context.Context, token, recordID string) (err error) {
	start := time.Now()
	defer func() { c.observe("delete_record", start, err) }()

	_, err = c.doJSON(ctx, http.MethodDelete, c.recordsURL()+"/"+recordID, token, nil)
	return err
}

func (c *Client) UploadFile(ctx context.Context, token, filename string, data []byte) (fileToken string, err error) {
	start := time.Now()
	defer func() { c.observe("upload_file", start, err) }()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	_ = writer.WriteField("file_name", filename)
	_ = writer.WriteField("parent_type", "bitable_file")
	_ = writer.WriteField("parent_node", c.conf.Feishu.AppToken)
	_ = writer.WriteField("size", strconv.Itoa(len(data)))

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/open-apis/drive/v1/medias/upload_all", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err = c.decodeEnvelope(resp)
	if err != nil {
		return "", err
	}

	var uploaded uploadData
	if err := json.Unmarshal(data, &uploaded); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if uploaded.FileToken == "" {
		return "", &APIError{Msg: "upload response carries no file token"}
	}
	return uploaded.FileToken, nil
}

// doJSON runs one authorized JSON round-trip and returns the envelope's
// data payload.
func (c *Client) doJSON(ctx context.Context, method, url, token string, payload interface{}) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, url, err)
	}
	defer resp.Body.Close()

	return c.decodeEnvelope(resp)
}

// decodeEnvelope separates the two failure classes: a response that decodes
// with a non-zero code is remote-reported (*APIError), anything else that
// prevents reading the payload counts as transport-level.
func (c *Client) decodeEnvelope(resp *http.Response) (json.RawMessage, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &APIError{Code: resp.StatusCode, Msg: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}
	if env.Code != 0 {
		c.logger.Warnf(providers.TypeSync, "remote error code=%d msg=%s", env.Code, env.Msg)
		return nil, &APIError{Code: env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}
