package models

import (
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// SnapshotVersion guards the persisted ledger format. A mismatch on load
// discards the blob entirely; cached months are refetched on demand.
const SnapshotVersion = 1

// RemoteRecord is one remote row decoded at the gateway boundary.
// Day is 0 when the source row carries no day value. Fields retains the
// raw remote field bag verbatim for display and re-submission.
type RemoteRecord struct {
	ID       string
	Day      int
	Category string
	Note     string
	Amount   decimal.Decimal
	Location string
	Fields   map[string]json.RawMessage
}

// ActivityRecord is one expense entry as served to consumers.
type ActivityRecord struct {
	ID          string                     `json:"id,omitempty"`
	Icon        string                     `json:"icon"`
	Title       string                     `json:"title"`
	Description string                     `json:"description,omitempty"`
	Location    string                     `json:"location,omitempty"`
	Amount      decimal.Decimal            `json:"amount"`
	Fields      map[string]json.RawMessage `json:"fields,omitempty"`
}

// DayBucket aggregates one calendar day. Icon holds the distinct,
// visibility-filtered category icons in insertion order; Activities the
// day's records. A bucket with no activities must not exist in the map.
type DayBucket struct {
	Icon       []string         `json:"icon"`
	Activities []ActivityRecord `json:"activities"`
}

// ActivityData maps day-of-month to its bucket.
type ActivityData map[int]*DayBucket

// MonthCache is one cached month: the day buckets plus the epoch-millis
// moment they were last synchronized with the remote source.
type MonthCache struct {
	Data      ActivityData `json:"data"`
	Timestamp int64        `json:"timestamp"`
}

// LedgerSnapshot is the persisted envelope for the whole month cache.
type LedgerSnapshot struct {
	Version int                    `json:"version"`
	Months  map[string]*MonthCache `json:"months"`
}

// StoredToken is the persisted access token with its issuance timestamp.
type StoredToken struct {
	Token    string `json:"token"`
	IssuedAt int64  `json:"issued_at"`
}

// AddIcon appends icon to the bucket's icon set unless it is already
// present or hidden from calendar badges.
func (b *DayBucket) AddIcon(icon string, hidden map[string]struct{}) {
	if icon == "" {
		return
	}
	if _, ok := hidden[icon]; ok {
		return
	}
	for _, existing := range b.Icon {
		if existing == icon {
			return
		}
	}
	b.Icon = append(b.Icon, icon)
}

// RecomputeIcons rebuilds the icon set from the remaining activities.
// Needed after delete/update since several activities may share an icon.
func (b *DayBucket) RecomputeIcons(hidden map[string]struct{}) {
	b.Icon = make([]string, 0, len(b.Activities))
	for _, act := range b.Activities {
		b.AddIcon(act.Icon, hidden)
	}
}

// Clone returns a deep copy of the record, including its raw field bag.
func (a ActivityRecord) Clone() ActivityRecord {
	out := a
	if a.Fields != nil {
		out.Fields = make(map[string]json.RawMessage, len(a.Fields))
		for key, val := range a.Fields {
			out.Fields[key] = val
		}
	}
	return out
}

// Clone returns a deep copy of the bucket.
func (b *DayBucket) Clone() *DayBucket {
	out := &DayBucket{
		Icon:       append([]string(nil), b.Icon...),
		Activities: make([]ActivityRecord, len(b.Activities)),
	}
	for i, act := range b.Activities {
		out.Activities[i] = act.Clone()
	}
	return out
}

// Clone returns a deep copy of the day map.
func (d ActivityData) Clone() ActivityData {
	out := make(ActivityData, len(d))
	for day, bucket := range d {
		out[day] = bucket.Clone()
	}
	return out
}

// Total sums the amounts of every activity in the bucket.
func (b *DayBucket) Total() decimal.Decimal {
	total := decimal.Zero
	for _, act := range b.Activities {
		total = total.Add(act.Amount)
	}
	return total
}
