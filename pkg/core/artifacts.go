// Package core provides the execution model types for smoke-runner.
package core

// Attachment represents an artifact captured while processing a screen
type Attachment struct {
	Name        string `json:"name"`        // screenshot, device_log
	ContentType string `json:"contentType"` // MIME type
	Path        string `json:"path"`        // File path on the local machine
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentDeviceLog  = "device_log"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeText = "text/plain"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
	}
}

// NewDeviceLogAttachment creates a device log attachment
func NewDeviceLogAttachment(path string) Attachment {
	return Attachment{
		Name:        AttachmentDeviceLog,
		ContentType: ContentTypeText,
		Path:        path,
	}
}
