package pdf

import (
	"context"
	"io"
)

// SummaryData feeds the billing summary export.
type SummaryData struct {
	OrgName     string
	OrgSlug     string
	Period      string
	Currency    string
	Timezone    string
	GeneratedAt string

	Items []SummaryItem

	Total string
}

// SummaryItem is one line of the summary, typically a team or service.
type SummaryItem struct {
	Label    string
	Quantity int
	Amount   string
}

type Provider interface {
	GenerateBillingSummary(ctx context.Context, data SummaryData) (io.Reader, error)
}
