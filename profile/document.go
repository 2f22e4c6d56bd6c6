package profile

import "fmt"

const (
	keyExperiments = "experiments"
	keyVersion     = "version"
	keyServiceKind = "service_kind"
	keyEndpoint    = "endpoint"
)

// Document is the profile export being built. Each setter replaces the
// previous value of its key. The zero value is an empty document ready to
// use. A Document is not safe for concurrent use.
type Document struct {
	root        Object
	experiments []*Object
}

// NewDocument returns an empty Document.
func NewDocument() *Document {
	return &Document{}
}

// Assemble builds the complete export for a run. Any serialization
// failure aborts assembly and no document is returned.
func Assemble(experiments []Experiment, meta Metadata) (*Document, error) {
	doc := NewDocument()
	doc.root.Set(keyExperiments, []*Object{})

	for i, e := range experiments {
		if err := doc.AddExperiment(e); err != nil {
			return nil, fmt.Errorf("experiment %d: %w", i, err)
		}
	}

	doc.SetVersion(meta.Version)

	if err := doc.SetServiceKind(meta.ServiceKind); err != nil {
		return nil, err
	}

	doc.SetEndpoint(meta.Endpoint)

	return doc, nil
}

// AddExperiment serializes e and appends it to the experiments array.
func (d *Document) AddExperiment(e Experiment) error {
	obj, err := SerializeExperiment(e)
	if err != nil {
		return err
	}

	d.experiments = append(d.experiments, obj)
	d.root.Set(keyExperiments, d.experiments)

	return nil
}

// SetVersion sets the tool version string.
func (d *Document) SetVersion(version string) {
	d.root.Set(keyVersion, version)
}

// SetServiceKind sets the service kind token.
func (d *Document) SetServiceKind(kind ServiceKind) error {
	token, err := kind.Token()
	if err != nil {
		return err
	}

	d.root.Set(keyServiceKind, token)

	return nil
}

// SetEndpoint sets the endpoint. An empty endpoint is valid.
func (d *Document) SetEndpoint(endpoint string) {
	d.root.Set(keyEndpoint, endpoint)
}

// Reset clears the document.
func (d *Document) Reset() {
	d.root = Object{}
	d.experiments = nil
}

// Experiments returns the number of experiments added so far.
func (d *Document) Experiments() int {
	return len(d.experiments)
}

// Get returns the top-level value stored under key.
func (d *Document) Get(key string) (any, bool) {
	return d.root.Get(key)
}

// Keys returns the top-level keys in order.
func (d *Document) Keys() []string {
	return d.root.Keys()
}

// MarshalJSON implements json.Marshaler.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.root.MarshalJSON()
}
