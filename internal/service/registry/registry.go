package registry

import "context"

// ModelHandle is an opaque reference to a loaded scoring model. The
// placeholder handle carries only a version; a real registry would attach
// the artifact.
type ModelHandle struct {
	Version  string
	Loaded   bool
	Artifact any
}

// Loader obtains the current production model. Injected into the pipeline
// so scoring logic can evolve independently of orchestration.
type Loader interface {
	Load(ctx context.Context) (ModelHandle, error)
}

// PlaceholderLoader returns an unloaded handle with a fixed version. Stands
// in until the production model registry is integrated.
type PlaceholderLoader struct {
	Version string
}

func NewPlaceholderLoader(version string) *PlaceholderLoader {
	return &PlaceholderLoader{Version: version}
}

func (p *PlaceholderLoader) Load(ctx context.Context) (ModelHandle, error) {
	return ModelHandle{Version: p.Version, Loaded: false}, nil
}

var _ Loader = (*PlaceholderLoader)(nil)
