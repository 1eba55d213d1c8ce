package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordSink struct {
	ops, recomputes int
	err             error
}

func (r *recordSink) RecordOperation(OperationEvent) error {
	r.ops++
	return r.err
}

func (r *recordSink) RecordRecompute(RecomputeEvent) error {
	r.recomputes++
	return nil
}

type opsOnly struct{ ops int }

func (o *opsOnly) RecordOperation(OperationEvent) error {
	o.ops++
	return nil
}

func TestMultiSinkForwards(t *testing.T) {
	a := &recordSink{}
	b := &opsOnly{}
	m := NewMultiSink(a, b)

	assert.NoError(t, m.RecordOperation(OperationEvent{Op: "CreateRoute", Outcome: "ok"}))
	assert.NoError(t, m.RecordRecompute(RecomputeEvent{RouteID: 1}))
	assert.NoError(t, m.RecordUtilization(UtilizationSnapshot{}))

	assert.Equal(t, 1, a.ops)
	assert.Equal(t, 1, a.recomputes)
	assert.Equal(t, 1, b.ops)
}

func TestMultiSinkKeepsGoingOnError(t *testing.T) {
	boom := errors.New("boom")
	a := &recordSink{err: boom}
	b := &opsOnly{}
	err := NewMultiSink(a, b).RecordOperation(OperationEvent{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, b.ops)
}

type closingSink struct {
	opsOnly
	closed bool
}

func (c *closingSink) Close() { c.closed = true }

func TestMultiSinkClose(t *testing.T) {
	c := &closingSink{}
	NewMultiSink(&opsOnly{}, c).Close()
	assert.True(t, c.closed)
}
