package models

// BuildMonthData converts a batch of remote records into the per-day
// activity map. Records missing a day value, missing a category string or
// whose category carries no emoji are skipped; a missing note is tolerated
// as an empty description. Hidden icons are kept out of the calendar badge
// set but their activities are recorded regardless.
func BuildMonthData(records []RemoteRecord, hidden map[string]struct{}) ActivityData {
	data := make(ActivityData)

	for _, rec := range records {
		if rec.Day < 1 || rec.Day > 31 || rec.Category == "" {
			continue
		}

		icon, label, ok := SplitCategory(rec.Category)
		if !ok {
			continue
		}

		bucket := data[rec.Day]
		if bucket == nil {
			bucket = &DayBucket{Icon: []string{}, Activities: []ActivityRecord{}}
			data[rec.Day] = bucket
		}

		bucket.AddIcon(icon, hidden)
		bucket.Activities = append(bucket.Activities, ActivityRecord{
			ID:          rec.ID,
			Icon:        icon,
			Title:       label,
			Description: rec.Note,
			Location:    rec.Location,
			Amount:      rec.Amount,
			Fields:      rec.Fields,
		})
	}

	return data
}
