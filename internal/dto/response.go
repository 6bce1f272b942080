package dto

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Pagination 分页信息
type Pagination struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// PagedData 分页数据
type PagedData struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 从 BizError 创建错误响应
func NewErrorResponse(err *BizError) *Response {
	return &Response{
		Code:    err.Code,
		Message: err.Message,
	}
}

// NewPagedResponse 创建分页响应
func NewPagedResponse(items interface{}, total int64, page, pageSize int) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data: &PagedData{
			Items: items,
			Pagination: &Pagination{
				Total:    total,
				Page:     page,
				PageSize: pageSize,
			},
		},
	}
}
