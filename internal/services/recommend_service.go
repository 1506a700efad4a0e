package services

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"ledgerd/internal/models"
	"ledgerd/internal/providers"
	"ledgerd/internal/structures"
)

const (
	defaultThreshold = 0.4

	// Recency weighting: full weight within recentWindow, then linear
	// decay down to decayFloor over decaySpan.
	recentWindow = 30 * 24 * time.Hour
	decaySpan    = 180 * 24 * time.Hour
	decayFloor   = 0.2
)

// Suggestion is a recommended (icon, title) category pair for a note.
type Suggestion struct {
	Icon       string  `json:"icon"`
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
	Matches    int     `json:"matches"`
}

// RecommendServiceInterface scores past records against a free-text note
// and suggests the most likely category, or nothing when confidence is
// below the configured threshold.
type RecommendServiceInterface interface {
	Recommend(note string) *Suggestion
}

type RecommendService struct {
	conf    *structures.Config
	logger  providers.Logger
	ledger  LedgerServiceInterface
	nowFunc func() time.Time
}

func NewRecommendService(conf *structures.Config, logger providers.Logger, ledger LedgerServiceInterface) RecommendServiceInterface {
	return &RecommendService{
		conf:    conf,
		logger:  logger,
		ledger:  ledger,
		nowFunc: time.Now,
	}
}

type candidate struct {
	icon    string
	title   string
	score   float64
	matches int
}

func (rs *RecommendService) threshold() float64 {
	if rs.conf.Recommend.Threshold > 0 {
		return rs.conf.Recommend.Threshold
	}
	return defaultThreshold
}

func (rs *RecommendService) Recommend(note string) *Suggestion {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil
	}

	noteTokens := tokenize(note)
	now := rs.nowFunc()
	scores := make(map[string]*candidate)

	for key, data := range rs.ledger.MonthsSnapshot() {
		year, month, ok := parseMonthKey(key)
		if !ok {
			continue
		}

		for day, bucket := range data {
			recordDate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
			weight := recencyWeight(now.Sub(recordDate))

			for _, act := range bucket.Activities {
				if act.Description == "" || strings.TrimSpace(act.Title) == models.UncategorizedLabel {
					continue
				}

				sim := similarity(note, noteTokens, act.Description)
				if sim <= 0 {
					continue
				}

				pair := act.Icon + "\x00" + act.Title
				c := scores[pair]
				if c == nil {
					c = &candidate{icon: act.Icon, title: act.Title}
					scores[pair] = c
				}
				c.score += sim * weight
				c.matches++
			}
		}
	}

	if len(scores) == 0 {
		return nil
	}

	candidates := make([]*candidate, 0, len(scores))
	for _, c := range scores {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].matches > candidates[j].matches
	})

	best := candidates[0]
	confidence := best.score / float64(best.matches)
	if confidence < rs.threshold() {
		rs.logger.Debugf(providers.TypeApp, "no suggestion for %q: confidence %.2f below threshold", note, confidence)
		return nil
	}

	return &Suggestion{
		Icon:       best.icon,
		Title:      best.title,
		Confidence: confidence,
		Matches:    best.matches,
	}
}

// similarity combines an exact/substring match ratio with a keyword
// overlap bonus, both in [0, 1].
func similarity(note string, noteTokens []string, historical string) float64 {
	a := strings.ToLower(note)
	b := strings.ToLower(historical)

	var matchRatio float64
	switch {
	case a == b:
		matchRatio = 1.0
	case strings.Contains(a, b) || strings.Contains(b, a):
		shorter, longer := len([]rune(a)), len([]rune(b))
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		matchRatio = float64(shorter) / float64(longer)
	}

	overlap := tokenOverlap(noteTokens, tokenize(historical))

	return 0.6*matchRatio + 0.4*overlap
}

// tokenOverlap is the Jaccard index of the two token sets.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, tok := range a {
		set[tok] = struct{}{}
	}

	shared := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, tok := range b {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := set[tok]; ok {
			shared++
		} else {
			union++
		}
	}

	return float64(shared) / float64(union)
}

// tokenize lowercases and splits on non-letter/digit boundaries; CJK runs
// are additionally split into single characters so short Chinese notes
// still overlap.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tokens []string
	for _, field := range fields {
		hasCJK := false
		for _, r := range field {
			if unicode.Is(unicode.Han, r) {
				hasCJK = true
				break
			}
		}
		if !hasCJK {
			tokens = append(tokens, field)
			continue
		}
		for _, r := range field {
			tokens = append(tokens, string(r))
		}
	}
	return tokens
}

// recencyWeight keeps full weight for records within the recent window and
// decays linearly toward the floor afterwards.
func recencyWeight(age time.Duration) float64 {
	if age <= recentWindow {
		return 1.0
	}
	excess := float64(age-recentWindow) / float64(decaySpan)
	if excess >= 1 {
		return decayFloor
	}
	return 1.0 - (1.0-decayFloor)*excess
}

func parseMonthKey(key string) (year, month int, ok bool) {
	if _, err := fmt.Sscanf(key, "%d-%d", &year, &month); err != nil {
		return 0, 0, false
	}
	if month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}
