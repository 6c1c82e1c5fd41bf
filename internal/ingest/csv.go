package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Candidate types mirror how the upstream research export distinguishes
// promoted listings from organically ranked ones.
const (
	CandidateTypeAd       = "Iklan"
	CandidateTypeTopSales = "Top Sales"
)

const risingTrendKeyword = "NAIK"

// CSVFilterOptions bounds the organic ranking slice kept per file. Rank
// positions are 1-based and inclusive.
type CSVFilterOptions struct {
	RankFrom int
	RankTo   int
}

// CSVCandidate is one url that survived the filter, annotated with why it
// was kept and which file it came from.
type CSVCandidate struct {
	URL    string
	Type   string
	Sales  int
	Source string
}

// CSVFilterResult aggregates candidates across all filtered files, deduped
// by url in first-seen order.
type CSVFilterResult struct {
	Candidates []CSVCandidate
	AdCount    int
	SalesCount int
}

// URLs returns the candidate urls in result order.
func (r *CSVFilterResult) URLs() []string {
	urls := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		urls = append(urls, c.URL)
	}
	return urls
}

type CSVInput struct {
	Name   string
	Reader io.Reader
}

// NewCSVInput names a reader so candidates can report their source file.
func NewCSVInput(name string, r io.Reader) CSVInput {
	return CSVInput{Name: name, Reader: r}
}

// FilterCSV applies the product-research filter to each file in order: keep
// rows whose trend column marks the product as rising, pass every ad row
// through, rank organic rows by sales count and keep the configured rank
// range. Urls are deduped across files, first occurrence wins.
func FilterCSV(files []CSVInput, opts CSVFilterOptions) (*CSVFilterResult, error) {
	if opts.RankFrom <= 0 {
		opts.RankFrom = 1
	}
	if opts.RankTo < opts.RankFrom {
		opts.RankTo = opts.RankFrom
	}

	result := &CSVFilterResult{}
	seen := make(map[string]struct{})

	for _, file := range files {
		ads, organic, err := filterOneCSV(file)
		if err != nil {
			return nil, fmt.Errorf("failed to filter %q: %w", file.Name, err)
		}

		sort.SliceStable(organic, func(a, b int) bool {
			return organic[a].Sales > organic[b].Sales
		})

		from := opts.RankFrom - 1
		to := opts.RankTo
		if from > len(organic) {
			from = len(organic)
		}
		if to > len(organic) {
			to = len(organic)
		}
		ranked := organic[from:to]

		result.AdCount += len(ads)
		result.SalesCount += len(ranked)

		for _, c := range append(ads, ranked...) {
			if _, ok := seen[c.URL]; ok {
				continue
			}
			seen[c.URL] = struct{}{}
			result.Candidates = append(result.Candidates, c)
		}
	}
	return result, nil
}

type csvColumns struct {
	trend int
	isAd  int
	sales int
	link  int
}

func filterOneCSV(file CSVInput) (ads []CSVCandidate, organic []CSVCandidate, err error) {
	reader := csv.NewReader(file.Reader)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := locateCSVColumns(header)
	if cols.link == -1 {
		return nil, nil, fmt.Errorf("missing link column in header row")
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Ragged or quoted-wrong rows are skipped, not fatal.
			continue
		}

		trend := strings.ToUpper(cellAt(record, cols.trend))
		if !strings.Contains(trend, risingTrendKeyword) {
			continue
		}

		url := cellAt(record, cols.link)
		if url == "" {
			continue
		}

		sales := 0
		if raw := cellAt(record, cols.sales); raw != "" {
			if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
				sales = parsed
			}
		}

		if strings.EqualFold(cellAt(record, cols.isAd), "yes") {
			ads = append(ads, CSVCandidate{URL: url, Type: CandidateTypeAd, Sales: sales, Source: file.Name})
			continue
		}
		organic = append(organic, CSVCandidate{URL: url, Type: CandidateTypeTopSales, Sales: sales, Source: file.Name})
	}
	return ads, organic, nil
}

func locateCSVColumns(header []string) csvColumns {
	cols := csvColumns{trend: -1, isAd: -1, sales: -1, link: -1}
	for i, cell := range header {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case cols.trend == -1 && strings.Contains(normalized, "tren"):
			cols.trend = i
		case cols.isAd == -1 && strings.Contains(normalized, "isad"):
			cols.isAd = i
		case cols.sales == -1 && strings.Contains(normalized, "penjualan"):
			cols.sales = i
		case cols.link == -1 && strings.Contains(normalized, "link"):
			cols.link = i
		}
	}
	return cols
}
