package types

// Relation declares that the value at Path references documents of the Ref
// collection, either as a single id or as an array of ids
type Relation struct {
	// Path is a dotted field path on the owning model
	Path string `yaml:"path" json:"path" jsonschema:"required"`

	// Ref is the name of the target model
	Ref string `yaml:"ref" json:"ref" jsonschema:"required"`

	// Array marks the reference as an array of ids
	Array bool `yaml:"array,omitempty" json:"array,omitempty"`
}

// ModelConfig is the immutable descriptor bound to a collection at
// registration time
type ModelConfig struct {
	// Name is the logical model name, also used as the $lookup/populate target
	Name string `yaml:"name" json:"name" jsonschema:"required,pattern=^[A-Za-z0-9_-]+$"`

	// File is the backing JSON file, relative to the registry data directory.
	// Defaults to "<name>.json".
	File string `yaml:"file,omitempty" json:"file,omitempty"`

	// Defaults is deep-merged into every newly constructed document
	Defaults Document `yaml:"defaults,omitempty" json:"defaults,omitempty"`

	// Relations lists the reference fields that can be populated
	Relations []Relation `yaml:"relations,omitempty" json:"relations,omitempty"`

	// TextFields restricts $text search to these paths.
	// Empty means the whole document is searched.
	TextFields []string `yaml:"textFields,omitempty" json:"textFields,omitempty"`

	// SubDocumentArrays lists array paths whose object elements receive an
	// auto-assigned _id
	SubDocumentArrays []string `yaml:"subDocumentArrays,omitempty" json:"subDocumentArrays,omitempty"`

	// Timestamps maintains createdAt/updatedAt as ISO-8601 strings
	Timestamps bool `yaml:"timestamps,omitempty" json:"timestamps,omitempty"`
}

// Relation returns the relation declared at path, if any
func (c ModelConfig) Relation(path string) (Relation, bool) {
	for _, r := range c.Relations {
		if r.Path == path {
			return r, true
		}
	}
	return Relation{}, false
}

// FileName returns the configured backing file name
func (c ModelConfig) FileName() string {
	if c.File != "" {
		return c.File
	}
	return c.Name + ".json"
}
