package space

import "github.com/mewprotocol/gateway/internal/envelope"

// ring is a fixed-capacity circular buffer of envelopes, the space's
// in-memory history used to backfill late joiners.
type ring struct {
	buf   []*envelope.Envelope
	next  int
	count int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1000
	}
	return &ring{buf: make([]*envelope.Envelope, capacity)}
}

func (r *ring) append(e *envelope.Envelope) {
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// snapshot returns the buffered envelopes in chronological order.
func (r *ring) snapshot() []*envelope.Envelope {
	out := make([]*envelope.Envelope, 0, r.count)
	if r.count < len(r.buf) {
		out = append(out, r.buf[:r.count]...)
		return out
	}
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
