package dataset

import "fmt"

// SchemaError reports a malformed or out-of-domain field in an annotation file.
type SchemaError struct {
	File   string
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation in %s: %s", e.File, e.Detail)
}

// MissingImageError reports an annotation file without a matching image file.
type MissingImageError struct {
	ImageID   string
	ImagePath string
}

func (e *MissingImageError) Error() string {
	return fmt.Sprintf("no image for annotation %s: %s does not exist", e.ImageID, e.ImagePath)
}

// NotFoundError reports a lookup miss on a loaded store.
type NotFoundError struct {
	ImageID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("image record not found: %s", e.ImageID)
}

// PartialLoadError reports a load aborted before every file was processed,
// for example by a caller-supplied timeout. A store carrying this error is
// unusable: it refuses lookups so a truncated split never feeds a run.
type PartialLoadError struct {
	Loaded int
	Total  int
	Cause  error
}

func (e *PartialLoadError) Error() string {
	return fmt.Sprintf("split load aborted after %d/%d files: %v", e.Loaded, e.Total, e.Cause)
}

func (e *PartialLoadError) Unwrap() error {
	return e.Cause
}
