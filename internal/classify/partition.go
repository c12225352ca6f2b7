package classify

import "github.com/amishk599/shiftalert/internal/model"

// Partition splits records into the three buckets, preserving input order.
func Partition(records []model.JobRecord) (part, full, other []model.JobRecord) {
	for _, rec := range records {
		switch rec.Bucket() {
		case model.BucketPartTime:
			part = append(part, rec)
		case model.BucketFullTime:
			full = append(full, rec)
		default:
			other = append(other, rec)
		}
	}
	return part, full, other
}

// OtherLabels returns the distinct raw JobType labels in order of first
// appearance.
func OtherLabels(records []model.JobRecord) []string {
	seen := make(map[string]bool, len(records))
	var labels []string
	for _, rec := range records {
		if seen[rec.JobType] {
			continue
		}
		seen[rec.JobType] = true
		labels = append(labels, rec.JobType)
	}
	return labels
}

// Summary counts records per bucket.
type Summary struct {
	PartTime int
	FullTime int
	Other    int
}

// Summarize counts records per bucket.
func Summarize(records []model.JobRecord) Summary {
	var s Summary
	for _, rec := range records {
		switch rec.Bucket() {
		case model.BucketPartTime:
			s.PartTime++
		case model.BucketFullTime:
			s.FullTime++
		default:
			s.Other++
		}
	}
	return s
}

// Winning reports which bucket Render would list.
func (s Summary) Winning() (model.Bucket, bool) {
	switch {
	case s.PartTime > 0:
		return model.BucketPartTime, true
	case s.FullTime > 0:
		return model.BucketFullTime, true
	case s.Other > 0:
		return model.BucketOther, true
	default:
		return model.BucketOther, false
	}
}
