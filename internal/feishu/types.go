package feishu

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"ledgerd/internal/models"
)

// Bitable column names of the record table.
const (
	FieldDay      = "日"
	FieldCategory = "类别"
	FieldNote     = "备注"
	FieldAmount   = "金额"
	FieldLocation = "位置"
	FieldDate     = "日期"
	FieldPhotos   = "照片"
	FieldYear     = "年"
	FieldMonth    = "月"
)

// Column names of the category table.
const (
	categoryFieldID   = "id"
	categoryFieldIcon = "icon"
	categoryFieldName = "活动类别"
	categoryFieldShow = "是否展示"
)

// APIError is a well-formed non-success response from the remote service,
// as opposed to a transport failure which surfaces as a plain error.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feishu: code %d: %s", e.Code, e.Msg)
}

// IsAPIError reports whether err is a remote-reported error rather than a
// transport failure.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

type searchData struct {
	Items     []rawRecord `json:"items"`
	HasMore   bool        `json:"has_more"`
	PageToken string      `json:"page_token"`
	Total     int         `json:"total"`
}

type recordData struct {
	Record rawRecord `json:"record"`
}

type uploadData struct {
	FileToken string `json:"file_token"`
}

type searchRequest struct {
	Filter *searchFilter `json:"filter,omitempty"`
	Sort   []searchSort  `json:"sort,omitempty"`
}

type searchFilter struct {
	Conjunction string            `json:"conjunction"`
	Conditions  []searchCondition `json:"conditions"`
}

type searchCondition struct {
	FieldName string   `json:"field_name"`
	Operator  string   `json:"operator"`
	Value     []string `json:"value"`
}

type searchSort struct {
	FieldName string `json:"field_name"`
	Desc      bool   `json:"desc"`
}

type recordPayload struct {
	Fields map[string]interface{} `json:"fields"`
}

// rawRecord is the loosely shaped row as the remote API returns it.
// Typed values are extracted here so nothing downstream touches the
// untyped field bag for arithmetic or control flow.
type rawRecord struct {
	RecordID string                     `json:"record_id"`
	Fields   map[string]json.RawMessage `json:"fields"`
}

func (r rawRecord) toRemote() models.RemoteRecord {
	return models.RemoteRecord{
		ID:       r.RecordID,
		Day:      decodeDay(r.Fields[FieldDay]),
		Category: decodeText(r.Fields[FieldCategory]),
		Note:     decodeText(r.Fields[FieldNote]),
		Amount:   decodeAmount(r.Fields[FieldAmount]),
		Location: decodeText(r.Fields[FieldLocation]),
		Fields:   r.Fields,
	}
}

func (r rawRecord) toCategory() models.Category {
	cat := models.Category{
		ID:       decodeText(r.Fields[categoryFieldID]),
		Icon:     decodeText(r.Fields[categoryFieldIcon]),
		Name:     decodeText(r.Fields[categoryFieldName]),
		RecordID: r.RecordID,
		IsShow:   decodeText(r.Fields[categoryFieldShow]),
	}
	if cat.IsShow == "" {
		cat.IsShow = models.CategoryShown
	}
	return cat
}

// valueWrapper is the {"value": [...]} shape formula columns come in.
type valueWrapper struct {
	Value []json.RawMessage `json:"value"`
}

// textSegment is one element of a rich-text column.
type textSegment struct {
	Text string `json:"text"`
}

// decodeDay accepts a plain number, a quoted number or a formula wrapper
// whose first value is either. Returns 0 when absent or unreadable.
func decodeDay(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}

	var wrapper valueWrapper
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Value) > 0 {
		return decodeDay(wrapper.Value[0])
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var parsed int
		if _, err := fmt.Sscanf(s, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return 0
}

// decodeText accepts a plain string, a rich-text segment list or a formula
// wrapper around either. Returns "" when absent, never an error.
func decodeText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var segments []textSegment
	if err := json.Unmarshal(raw, &segments); err == nil {
		out := ""
		for _, seg := range segments {
			out += seg.Text
		}
		return out
	}

	var wrapper valueWrapper
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Value) > 0 {
		return decodeText(wrapper.Value[0])
	}
	return ""
}

// decodeAmount normalizes the remote amount column, which arrives as a
// number, a numeric string, a rich-text segment list or a formula wrapper.
// Unreadable values decode to zero rather than failing the batch.
func decodeAmount(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 {
		return decimal.Zero
	}

	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err == nil {
		return d
	}

	var wrapper valueWrapper
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Value) > 0 {
		return decodeAmount(wrapper.Value[0])
	}

	if text := decodeText(raw); text != "" {
		if d, err := decimal.NewFromString(text); err == nil {
			return d
		}
	}
	return decimal.Zero
}
