package transform

// Pipeline owns a chain of stages created from a list of codecs. Codecs are
// given head first; the last codec is the terminal stage.
//
// Pipeline implements io.WriteCloser: Write feeds the head and Close
// finalizes every stage.
type Pipeline struct {
	stages []*Stage
}

// NewPipeline builds the chain tail first so that every stage is created
// with its downstream stage already in place.
func NewPipeline(codecs ...Codec) (*Pipeline, error) {
	if len(codecs) == 0 {
		return nil, ErrParam
	}
	stages := make([]*Stage, len(codecs))
	var next *Stage
	for i := len(codecs) - 1; i >= 0; i-- {
		s, err := NewStage(codecs[i], next)
		if err != nil {
			// release what was built so far
			_ = FinalizeAll(next)
			return nil, err
		}
		stages[i] = s
		next = s
	}
	return &Pipeline{stages: stages}, nil
}

// Head returns the first stage.
func (p *Pipeline) Head() *Stage {
	return p.stages[0]
}

// Stages returns the stages head first.
func (p *Pipeline) Stages() []*Stage {
	return p.stages
}

// Feed feeds b into the head stage.
func (p *Pipeline) Feed(b []byte) error {
	return p.Head().Feed(b)
}

// Finalize finalizes every stage and returns the first error.
func (p *Pipeline) Finalize() error {
	return FinalizeAll(p.Head())
}

// Write implements io.Writer.
func (p *Pipeline) Write(b []byte) (int, error) {
	if err := p.Feed(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close implements io.Closer.
func (p *Pipeline) Close() error {
	return p.Finalize()
}

// EncodeBase64 returns the base64 encoding of src produced by a
// Base64Encoder to MemorySink pipeline.
func EncodeBase64(src []byte) ([]byte, error) {
	return runThrough(NewBase64Encoder(), src)
}

// DecodeBase64 returns the bytes decoded from src by a Base64Decoder to
// MemorySink pipeline.
func DecodeBase64(src []byte) ([]byte, error) {
	return runThrough(NewBase64Decoder(), src)
}

func runThrough(c Codec, src []byte) ([]byte, error) {
	sink := NewMemorySink(make([]byte, 0, len(src)*4/3+4))
	p, err := NewPipeline(c, sink)
	if err != nil {
		return nil, err
	}
	if err := p.Feed(src); err != nil {
		_ = p.Finalize()
		return nil, err
	}
	if err := p.Finalize(); err != nil {
		return nil, err
	}
	return sink.Bytes(), nil
}
