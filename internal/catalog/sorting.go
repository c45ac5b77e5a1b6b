package catalog

// SortFilter is one search ordering offered to shoppers.
type SortFilter struct {
	Title   string `json:"title"`
	Slug    string `json:"slug,omitempty"`
	SortKey string `json:"sortKey"`
	Reverse bool   `json:"reverse"`
}

var DefaultSort = SortFilter{Title: "Relevance", SortKey: "RELEVANCE"}

var Sorting = []SortFilter{
	DefaultSort,
	{Title: "Trending", Slug: "trending-desc", SortKey: "BEST_SELLING"},
	{Title: "Latest arrivals", Slug: "latest-desc", SortKey: "CREATED_AT", Reverse: true},
	{Title: "Price: Low to high", Slug: "price-asc", SortKey: "PRICE"},
	{Title: "Price: High to low", Slug: "price-desc", SortKey: "PRICE", Reverse: true},
}

// SortBySlug falls back to DefaultSort for unknown or empty slugs.
func SortBySlug(slug string) SortFilter {
	for _, s := range Sorting {
		if slug != "" && s.Slug == slug {
			return s
		}
	}
	return DefaultSort
}
