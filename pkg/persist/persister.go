package persist

import (
	"fmt"
	"os"
)

// Persister saves one state type under a fixed basename in several codecs.
type Persister[T any] struct {
	basename string
	codecs   []Codec
}

// NewPersister creates a persister writing basename with every codec given.
func NewPersister[T any](basename string, codecs ...Codec) *Persister[T] {
	return &Persister[T]{basename: basename, codecs: codecs}
}

// Save writes state once per codec into dir, creating dir when needed.
// It returns the written paths in codec order.
func (p *Persister[T]) Save(dir string, state *T) ([]string, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	paths := make([]string, 0, len(p.codecs))

	for _, codec := range p.codecs {
		path, saveErr := SaveState(dir, p.basename, codec, state)
		if saveErr != nil {
			return paths, saveErr
		}

		paths = append(paths, path)
	}

	return paths, nil
}

// Load restores state from dir using the first codec.
func (p *Persister[T]) Load(dir string) (*T, error) {
	if len(p.codecs) == 0 {
		return nil, fmt.Errorf("%w: persister %s has no codecs", ErrUnknownExtension, p.basename)
	}

	var state T

	err := LoadState(dir, p.basename, p.codecs[0], &state)
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// Open decodes the file at path, choosing the codec from its extension.
func Open[T any](path string) (*T, error) {
	codec, err := CodecForPath(path)
	if err != nil {
		return nil, err
	}

	var state T

	err = ReadFile(path, codec, &state)
	if err != nil {
		return nil, err
	}

	return &state, nil
}
