package entity

// ImageTask is one image queued for recognition.
type ImageTask struct {
	ID   string `json:"id"`   // file name without extension
	Path string `json:"path"` // absolute path to the source image
}
