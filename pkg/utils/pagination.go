package utils

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination 分页请求参数 (limit/offset)
type Pagination struct {
	Limit  int `json:"limit" form:"limit"`
	Offset int `json:"offset" form:"offset"`
}

// PageResult 分页响应结果
type PageResult struct {
	List   interface{} `json:"list"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// Normalize 修正非法的分页参数
func (p *Pagination) Normalize() {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// Paginate 对内存中的结果集切片分页
func Paginate[T any](items []T, p Pagination) PageResult {
	p.Normalize()
	total := len(items)
	start := p.Offset
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	page := make([]T, end-start)
	copy(page, items[start:end])
	return PageResult{
		List:   page,
		Total:  total,
		Limit:  p.Limit,
		Offset: p.Offset,
	}
}
