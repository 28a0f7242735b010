package attachment

// Kind discriminates processed attachments.
type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// ProcessedFile is a user-supplied file after ingestion. For text
// attachments Content holds the extracted (possibly truncated) text;
// for images it holds either a storage-backed URL or an inline data
// URL that is never persisted.
type ProcessedFile struct {
	Kind         Kind   `json:"kind"`
	Name         string `json:"name"`
	Content      string `json:"content"`
	WasTruncated bool   `json:"wasTruncated"`
	WasResized   bool   `json:"wasResized"`
}
