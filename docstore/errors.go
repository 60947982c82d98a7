package docstore

import "errors"

var (
	// ErrModelExists is returned when a model name is registered twice
	ErrModelExists = errors.New("model already defined")

	// ErrUnknownModel is returned when a model name is not registered
	ErrUnknownModel = errors.New("unknown model")

	// ErrRecordGone is returned when saving a partial record whose stored
	// document was deleted
	ErrRecordGone = errors.New("stored document no longer exists")
)
