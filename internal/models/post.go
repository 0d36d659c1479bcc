package models

// ImageMetadata holds the per-image attributes collected from the form.
type ImageMetadata struct {
	FileName    string `json:"file_name"`
	Location    string `json:"location"`
	Coordinates string `json:"coordinates"`
	Description string `json:"description"`
	AltText     string `json:"alt_text"`
	Caption     string `json:"caption"`
	ImageURL    string `json:"image_url" validate:"required"`
}

// PostRecord is the aggregate built from a single form submission.
type PostRecord struct {
	Title        string `json:"title" validate:"required"`
	Categories   string `json:"categories" validate:"required"`
	Strava       string `json:"strava,omitempty"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	FeatureImage string `json:"feature_image,omitempty"`

	// Feature is populated by feature resolution.
	Feature ImageMetadata `json:"feature"`

	images map[string]*ImageMetadata
	order  []string
}

// NewPostRecord returns an empty record ready for accumulation.
func NewPostRecord() *PostRecord {
	return &PostRecord{images: make(map[string]*ImageMetadata)}
}

// Image returns the metadata stored under key, inserting an empty entry
// the first time key is seen.
func (p *PostRecord) Image(key string) *ImageMetadata {
	if p.images == nil {
		p.images = make(map[string]*ImageMetadata)
	}
	if m, ok := p.images[key]; ok {
		return m
	}
	m := &ImageMetadata{}
	p.images[key] = m
	p.order = append(p.order, key)
	return m
}

// Lookup returns the metadata stored under key without inserting.
func (p *PostRecord) Lookup(key string) (*ImageMetadata, bool) {
	m, ok := p.images[key]
	return m, ok
}

// Keys returns image keys in the order they first appeared.
func (p *PostRecord) Keys() []string {
	keys := make([]string, len(p.order))
	copy(keys, p.order)
	return keys
}

// Len returns the number of images on the record.
func (p *PostRecord) Len() int {
	return len(p.images)
}

// PendingUpload is a binary image waiting to be sent to object storage.
type PendingUpload struct {
	FileName    string
	StoragePath string
	ContentType string
	Data        []byte
}

// ImageRef points at an image uploaded ahead of the post form.
type ImageRef struct {
	Key         string
	StoragePath string
}

// Submission is everything demultiplexed from one form post.
type Submission struct {
	Token      string
	Record     *PostRecord
	Uploads    []PendingUpload
	References []ImageRef
}
