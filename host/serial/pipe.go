package serial

import "io"

// pipePort is one end of an in-memory Port pair.
type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter
}

// Pipe returns two connected in-memory Ports: bytes written to one are
// read from the other. Tests script a fake IO board on one end and
// hand the other to the code under test.
func Pipe() (Port, Port) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	return &pipePort{r: ar, w: aw}, &pipePort{r: br, w: bw}
}

func (p *pipePort) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

func (p *pipePort) Write(b []byte) (int, error) {
	return p.w.Write(b)
}

// Close tears down both directions: the peer's pending reads and
// writes fail with io.ErrClosedPipe.
func (p *pipePort) Close() error {
	p.r.Close()
	return p.w.Close()
}

func (p *pipePort) Flush() error {
	return nil
}
