package engine

// Capabilities describes the optional features an engine variant honors.
// One instance exists per variant, fixed at definition time.
type Capabilities struct {
	Name              string
	VADFilter         bool
	WordTimestamps    bool
	Diarization       bool
	LanguageDetection bool
}

// Gate returns a copy of opts with every feature this variant does not
// advertise switched off. Unsupported options degrade silently instead of
// erroring so the same request works against any engine.
func (c Capabilities) Gate(opts Options) Options {
	if !c.VADFilter {
		opts.VADFilter = false
	}
	if !c.WordTimestamps {
		opts.WordTimestamps = false
	}
	if !c.Diarization {
		opts.Diarization = DiarizationOptions{}
	}
	return opts
}
