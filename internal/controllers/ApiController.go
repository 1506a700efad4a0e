package controllers

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"ledgerd/internal/feishu"
	"ledgerd/internal/models"
	"ledgerd/internal/providers"
	"ledgerd/internal/services"
	"ledgerd/internal/structures"
)

const (
	maxRequestBodySize = 1 << 20  // 1 MB
	maxUploadSize      = 10 << 20 // 10 MB
)

type ApiController struct {
	conf        *structures.Config
	logger      providers.Logger
	service     services.LedgerServiceInterface
	recommender services.RecommendServiceInterface
	cache       providers.CacheProviderInterface
}

func NewApiController(conf *structures.Config, logger providers.Logger, service services.LedgerServiceInterface, recommender services.RecommendServiceInterface, cache providers.CacheProviderInterface) *ApiController {
	return &ApiController{
		conf:        conf,
		logger:      logger,
		service:     service,
		recommender: recommender,
		cache:       cache,
	}
}

type recordRequest struct {
	Year        int      `json:"year"`
	Month       int      `json:"month"`
	Day         int      `json:"day"`
	Icon        string   `json:"icon"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Amount      float64  `json:"amount"`
	Timestamp   int64    `json:"timestamp"`
	PhotoTokens []string `json:"photo_tokens"`
}

type mutationResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type preloadRequest struct {
	Year       int `json:"year"`
	Month      int `json:"month"`
	StartYear  int `json:"start_year"`
	StartMonth int `json:"start_month"`
	EndYear    int `json:"end_year"`
	EndMonth   int `json:"end_month"`
}

type monthResponse struct {
	Data      models.ActivityData `json:"data"`
	DayTotals map[int]string      `json:"day_totals"`
	Total     string              `json:"total"`
}

// monthPayload wraps a month's day buckets with the per-day amount sums
// and the month total the calendar and stats views derive.
func monthPayload(data models.ActivityData) monthResponse {
	totals := make(map[int]string, len(data))
	sum := decimal.Zero
	for day, bucket := range data {
		t := bucket.Total()
		totals[day] = t.String()
		sum = sum.Add(t)
	}
	return monthResponse{Data: data, DayTotals: totals, Total: sum.String()}
}

func getYearMonth(r *http.Request) (models.YearMonth, error) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 1 {
		return models.YearMonth{}, fmt.Errorf("invalid year")
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		return models.YearMonth{}, fmt.Errorf("invalid month")
	}
	return models.YearMonth{Year: year, Month: month}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

// GetMonth serves the activity data for one month, fetching it from the
// remote table when the local copy is absent or expired. The response cache
// key carries the month entry's write timestamp, so any mutation or refresh
// naturally moves reads to a new key instead of serving the stale body.
func (ac *ApiController) GetMonth(w http.ResponseWriter, r *http.Request) {
	ym, err := getYearMonth(r)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ac.service.EnsureMonth(r.Context(), ym.Year, ym.Month)

	ts := ac.service.MonthTimestamp(ym.Year, ym.Month)
	key := fmt.Sprintf("month:%s:%d", models.MonthKey(ym.Year, ym.Month), ts)
	ac.serveFromCacheOrCompute(w, key, func() (any, error) {
		return monthPayload(ac.service.GetMonth(ym.Year, ym.Month)), nil
	})
}

// RefreshMonth forces a remote fetch for one month regardless of freshness.
func (ac *ApiController) RefreshMonth(w http.ResponseWriter, r *http.Request) {
	ym, err := getYearMonth(r)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	data, err := ac.service.RefreshMonth(r.Context(), ym.Year, ym.Month)
	if err != nil {
		ac.logger.Warnf(providers.TypeHTTP, "refresh %s failed: %v", models.MonthKey(ym.Year, ym.Month), err)
		msg := "upstream unavailable"
		if feishu.IsAPIError(err) {
			msg = err.Error()
		}
		writeJSON(w, http.StatusBadGateway, mutationResponse{Success: false, Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, monthPayload(data))
}

// Preload warms a set of months in one call. The body selects the set:
// a start/end pair loads that span, a bare year loads all twelve months,
// and a year/month pair (or an empty body) loads the months around the
// center per the configured prefetch radius.
func (ac *ApiController) Preload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload preloadRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && err != io.EOF {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var months []models.YearMonth
	switch {
	case payload.StartYear != 0:
		if payload.EndYear == 0 || payload.StartMonth < 1 || payload.StartMonth > 12 ||
			payload.EndMonth < 1 || payload.EndMonth > 12 {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		months = models.MonthSpan(payload.StartYear, payload.StartMonth, payload.EndYear, payload.EndMonth)
	case payload.Year != 0 && payload.Month == 0:
		months = models.MonthSpan(payload.Year, 1, payload.Year, 12)
	default:
		center := time.Now()
		year, month := payload.Year, payload.Month
		if year == 0 {
			year, month = center.Year(), int(center.Month())
		}
		if month < 1 || month > 12 {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		months = models.MonthRange(year, month, ac.conf.Sync.PrefetchRadius)
	}

	ac.service.EnsureRange(r.Context(), months)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "months": len(months)})
}

const categoriesCacheKey = "categories"

func (ac *ApiController) GetCategories(w http.ResponseWriter, r *http.Request) {
	if data, ok := ac.cache.Get(categoriesCacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	categories := ac.service.EnsureCategories(r.Context())
	gson, err := json.Marshal(categories)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// An empty list means the upstream fetch failed; caching it would pin
	// the outage for the whole cache TTL and mask the service's retry.
	if len(categories) > 0 {
		ac.cache.Set(categoriesCacheKey, gson)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

// RefreshCategories forces a remote re-fetch of the category table and
// drops the cached response body so the next read serves the new list.
func (ac *ApiController) RefreshCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := ac.service.RefreshCategories(r.Context())
	if err != nil {
		ac.logger.Warnf(providers.TypeHTTP, "category refresh failed: %v", err)
		msg := "upstream unavailable"
		if feishu.IsAPIError(err) {
			msg = err.Error()
		}
		writeJSON(w, http.StatusBadGateway, mutationResponse{Success: false, Error: msg})
		return
	}

	ac.cache.Del(categoriesCacheKey)
	writeJSON(w, http.StatusOK, categories)
}

func (ac *ApiController) decodeDraft(w http.ResponseWriter, r *http.Request) (*recordRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload recordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return nil, false
	}
	if payload.Year < 1 || payload.Month < 1 || payload.Month > 12 || payload.Day < 1 || payload.Day > 31 {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return nil, false
	}
	if payload.Category == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return nil, false
	}
	if payload.Timestamp == 0 {
		payload.Timestamp = time.Date(payload.Year, time.Month(payload.Month), payload.Day, 0, 0, 0, 0, time.Local).UnixMilli()
	}
	return &payload, true
}

func (payload *recordRequest) draft() models.RecordDraft {
	return models.RecordDraft{
		Icon:        payload.Icon,
		Category:    payload.Category,
		Description: payload.Description,
		Location:    payload.Location,
		Amount:      decimal.NewFromFloat(payload.Amount),
		Timestamp:   payload.Timestamp,
		PhotoTokens: payload.PhotoTokens,
	}
}

func (ac *ApiController) mutationError(w http.ResponseWriter, err error) {
	msg := "upstream unavailable"
	if feishu.IsAPIError(err) {
		msg = err.Error()
	}
	writeJSON(w, http.StatusBadGateway, mutationResponse{Success: false, Error: msg})
}

// CreateRecord writes a new record to the remote table and folds the
// confirmed row into the cached month.
func (ac *ApiController) CreateRecord(w http.ResponseWriter, r *http.Request) {
	payload, ok := ac.decodeDraft(w, r)
	if !ok {
		return
	}

	ym := models.YearMonth{Year: payload.Year, Month: payload.Month}
	act, err := ac.service.CreateRecord(r.Context(), ym, payload.Day, payload.draft())
	if err != nil {
		ac.logger.Warnf(providers.TypeHTTP, "create record failed: %v", err)
		ac.mutationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mutationResponse{Success: true, ID: act.ID})
}

func (ac *ApiController) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	recordID := r.URL.Query().Get("id")
	if recordID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	payload, ok := ac.decodeDraft(w, r)
	if !ok {
		return
	}

	ym := models.YearMonth{Year: payload.Year, Month: payload.Month}
	if err := ac.service.UpdateRecord(r.Context(), ym, payload.Day, recordID, payload.draft()); err != nil {
		ac.logger.Warnf(providers.TypeHTTP, "update record %s failed: %v", recordID, err)
		ac.mutationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Success: true, ID: recordID})
}

func (ac *ApiController) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	recordID := r.URL.Query().Get("id")
	if recordID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ym, err := getYearMonth(r)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	day, err := strconv.Atoi(r.URL.Query().Get("day"))
	if err != nil || day < 1 || day > 31 {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := ac.service.DeleteRecord(r.Context(), ym, day, recordID); err != nil {
		ac.logger.Warnf(providers.TypeHTTP, "delete record %s failed: %v", recordID, err)
		ac.mutationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Success: true, ID: recordID})
}

type recommendResponse struct {
	Found      bool    `json:"found"`
	Icon       string  `json:"icon,omitempty"`
	Title      string  `json:"title,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Matches    int     `json:"matches,omitempty"`
}

// Recommend suggests a category for a free-text note based on past records.
func (ac *ApiController) Recommend(w http.ResponseWriter, r *http.Request) {
	note := r.URL.Query().Get("note")
	if note == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	suggestion := ac.recommender.Recommend(note)
	if suggestion == nil {
		writeJSON(w, http.StatusOK, recommendResponse{Found: false})
		return
	}
	writeJSON(w, http.StatusOK, recommendResponse{
		Found:      true,
		Icon:       suggestion.Icon,
		Title:      suggestion.Title,
		Confidence: suggestion.Confidence,
		Matches:    suggestion.Matches,
	})
}

type exportRow struct {
	year, month, day int
	act              models.ActivityRecord
}

// ExportCSV streams every cached record as CSV, newest first.
func (ac *ApiController) ExportCSV(w http.ResponseWriter, r *http.Request) {
	snapshot := ac.service.MonthsSnapshot()

	var rows []exportRow
	for key, data := range snapshot {
		var year, month int
		if _, err := fmt.Sscanf(key, "%d-%d", &year, &month); err != nil {
			continue
		}
		for day, bucket := range data {
			for _, act := range bucket.Activities {
				rows = append(rows, exportRow{year: year, month: month, day: day, act: act})
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].year != rows[j].year {
			return rows[i].year > rows[j].year
		}
		if rows[i].month != rows[j].month {
			return rows[i].month > rows[j].month
		}
		return rows[i].day > rows[j].day
	})

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"date", "category", "icon", "amount", "note", "location"})
	for _, row := range rows {
		_ = cw.Write([]string{
			fmt.Sprintf("%04d-%02d-%02d", row.year, row.month, row.day),
			row.act.Title,
			row.act.Icon,
			row.act.Amount.String(),
			row.act.Description,
			row.act.Location,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		ac.logger.Warnf(providers.TypeHTTP, "csv export write failed: %v", err)
	}
}

type uploadResponse struct {
	Success   bool   `json:"success"`
	FileToken string `json:"file_token,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Upload relays a photo to the remote drive and returns its file token,
// which a later record mutation can reference.
func (ac *ApiController) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	filename := header.Filename
	if filename == "" {
		filename = uuid.NewString()
	}

	token, err := ac.service.UploadFile(r.Context(), filename, data)
	if err != nil {
		ac.logger.Warnf(providers.TypeHTTP, "upload %s failed: %v", filename, err)
		msg := "upstream unavailable"
		if feishu.IsAPIError(err) {
			msg = err.Error()
		}
		writeJSON(w, http.StatusBadGateway, uploadResponse{Success: false, Error: msg})
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Success: true, FileToken: token})
}
