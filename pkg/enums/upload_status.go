package enums

// UploadStatus is the client-side state of one image in an upload batch.
type UploadStatus string

const (
	UploadStatusSelected        UploadStatus = "selected"
	UploadStatusRequestingGrant UploadStatus = "requesting-grant"
	UploadStatusUploading       UploadStatus = "uploading"
	UploadStatusCompleted       UploadStatus = "completed"
	UploadStatusFailed          UploadStatus = "failed"
)

func (s UploadStatus) String() string {
	return string(s)
}

// IsFinal reports whether the image has finished, successfully or not.
func (s UploadStatus) IsFinal() bool {
	return s == UploadStatusCompleted || s == UploadStatusFailed
}
