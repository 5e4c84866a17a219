package transfer

// RowError describes a single invalid CSV row. A batch with any row error
// is rejected as a whole.
type RowError struct {
	Line    int    `json:"line"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

type UploadResult struct {
	PostsScheduled   int `json:"posts_scheduled"`
	ThreadsScheduled int `json:"threads_scheduled"`
}
