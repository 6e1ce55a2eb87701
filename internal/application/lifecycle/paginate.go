package lifecycle

// Page is one window of an ordered collection with wrap-around neighbours
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
	PrevPage   int `json:"prev_page"`
	NextPage   int `json:"next_page"`
	Total      int `json:"total"`
}

// Paginate clamps page into [1, totalPages] and slices the matching window.
// An empty collection still has one (empty) page. The previous page of the
// first page is the last one and the next page of the last is the first.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if pageSize < 1 {
		pageSize = 1
	}

	total := (len(items) + pageSize - 1) / pageSize
	if total < 1 {
		total = 1
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}

	prev := page - 1
	if prev < 1 {
		prev = total
	}
	next := page + 1
	if next > total {
		next = 1
	}

	return Page[T]{
		Items:      items[start:end],
		Page:       page,
		TotalPages: total,
		PrevPage:   prev,
		NextPage:   next,
		Total:      len(items),
	}
}
