package domain

import "time"

// Batch is a point-in-time view over sent links sharing one batch id.
// It is reconstructed from the links table and never persisted on its own;
// membership is immutable once the batch has been dispatched.
type Batch struct {
	ID       string
	Label    string
	SentAt   time.Time
	CopiedAt *time.Time
	Links    []Link
}

// URLs returns the batch payload in original insertion order.
func (b *Batch) URLs() []string {
	if b == nil {
		return nil
	}
	urls := make([]string, 0, len(b.Links))
	for _, link := range b.Links {
		urls = append(urls, link.URL)
	}
	return urls
}
