package models

// ImageStatus classifies the dentition visible on a radiograph.
type ImageStatus string

const (
	StatusEdentulous ImageStatus = "edentulous"
	StatusMixed      ImageStatus = "mixed"
	StatusDentate    ImageStatus = "dentate"
)

// Valid reports whether the status is one of the known set.
func (s ImageStatus) Valid() bool {
	switch s {
	case StatusEdentulous, StatusMixed, StatusDentate:
		return true
	}
	return false
}

// ImageRecord is one radiograph with its annotations. Records are built once
// at load time and never mutated afterwards.
type ImageRecord struct {
	ImageID  string             `json:"image_id"`
	Status   ImageStatus        `json:"image_status"`
	Width    int                `json:"width"`
	Height   int                `json:"height"`
	FilePath string             `json:"filepath"`
	Teeth    []AnnotationRecord `json:"teeth"`
	// Metadata carries acquisition attributes from metadata.csv
	// (device, kVp, mAs, pixel spacing). Passed through unvalidated.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// AnnotationKey is the uniqueness key for annotations within one image.
type AnnotationKey struct {
	ToothID     int
	Radiologist Radiologist
}

// Key returns the per-image uniqueness key of an annotation.
func (a *AnnotationRecord) Key() AnnotationKey {
	return AnnotationKey{ToothID: a.ToothID, Radiologist: a.Radiologist}
}

// RecordFilter contains filtering options for querying image records.
type RecordFilter struct {
	Status      string
	Condition   string
	ToothID     int
	Radiologist string
	Limit       int
	Offset      int
}
