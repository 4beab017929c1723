package sequence

import (
	"io"

	"github.com/YuminosukeSato/sparsepce/core/model"
	"github.com/YuminosukeSato/sparsepce/pkg/errors"
)

const formatVersion = 1

// snapshot is the gob form of a BasisSequence.
type snapshot struct {
	Version   int
	DictSize  int
	Steps     []Step
	Reason    StopReason
	Finalized bool
}

func (s *BasisSequence) snapshot() snapshot {
	return snapshot{
		Version:   formatVersion,
		DictSize:  s.dictSize,
		Steps:     s.steps,
		Reason:    s.reason,
		Finalized: s.IsFinalized(),
	}
}

func fromSnapshot(snap snapshot) (*BasisSequence, error) {
	if snap.Version != formatVersion {
		return nil, errors.NewValidationError("version", "unsupported sequence format", snap.Version)
	}
	seq := New(snap.DictSize)
	for _, step := range snap.Steps {
		if err := seq.Append(step); err != nil {
			return nil, errors.Wrap(err, "corrupt sequence")
		}
	}
	if snap.Finalized {
		seq.Finalize(snap.Reason)
	}
	return seq, nil
}

// Save writes the sequence to filename.
func (s *BasisSequence) Save(filename string) error {
	return model.SaveModel(s.snapshot(), filename)
}

// Load reads a sequence written by Save.
func Load(filename string) (*BasisSequence, error) {
	var snap snapshot
	if err := model.LoadModel(&snap, filename); err != nil {
		return nil, err
	}
	return fromSnapshot(snap)
}

// WriteTo implements io.WriterTo.
func (s *BasisSequence) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := model.SaveModelToWriter(s.snapshot(), cw)
	return cw.n, err
}

// ReadFrom implements io.ReaderFrom. It replaces the content of s.
func (s *BasisSequence) ReadFrom(r io.Reader) (int64, error) {
	cr := &countingReader{r: r}
	var snap snapshot
	if err := model.LoadModelFromReader(&snap, cr); err != nil {
		return cr.n, err
	}
	seq, err := fromSnapshot(snap)
	if err != nil {
		return cr.n, err
	}
	*s = *seq
	return cr.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
