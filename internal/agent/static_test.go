// File: internal/agent/static_test.go
package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const staticPage = `<html><head><title>News</title></head><body>
<article><p>Top story: Solar flare observed over the southern hemisphere this
morning, with auroras expected across several continents tonight.</p></article>
</body></html>`

func runStaticTest(t *testing.T, dec *fakeDecider, p loopParams) (*Result, bool, *runState) {
	t.Helper()
	state := freshState()
	r, resolved := runStatic(context.Background(), dec, p, staticPage, "https://news.example.com/", state, nil, nil, zap.NewNop())
	return r, resolved, state
}

func TestStaticResolvesDone(t *testing.T) {
	dec := &fakeDecider{script: []scripted{
		{response: `{"type":"done","result":"Solar flare observed"}`},
	}}

	r, resolved, _ := runStaticTest(t, dec, testParams())

	require.True(t, resolved)
	assert.Equal(t, StatusDone, r.Status)
	assert.Equal(t, TierHTTP, r.Tier)
	assert.Equal(t, "Solar flare observed", r.Data)
	require.Len(t, r.Actions, 1)
	assert.Equal(t, 1, r.Usage.Calls)

	require.Len(t, dec.requests, 1)
	assert.Contains(t, dec.requests[0].Snapshot, "Solar flare")
	assert.Empty(t, dec.requests[0].History)
	assert.False(t, dec.requests[0].Vision)
}

func TestStaticHonorsFailedPrefix(t *testing.T) {
	dec := &fakeDecider{script: []scripted{
		{response: `{"type":"done","result":"FAILED: page has no story"}`},
	}}

	r, resolved, _ := runStaticTest(t, dec, testParams())

	require.True(t, resolved)
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, TierHTTP, r.Tier)
	assert.Equal(t, "page has no story", r.Error)
}

func TestStaticEscalatesOnInteraction(t *testing.T) {
	dec := &fakeDecider{script: []scripted{
		{response: `{"type":"click","selector":"a[href=\"/story/1\"]"}`},
	}}

	r, resolved, state := runStaticTest(t, dec, testParams())

	assert.False(t, resolved)
	assert.Nil(t, r)
	// Spent tokens carry over into the browser loop.
	assert.Equal(t, 1, state.usage.Calls)
	assert.Equal(t, 15, state.usage.TotalTokens)
	assert.Empty(t, state.actions)
}

func TestStaticEscalatesOnDecideError(t *testing.T) {
	dec := &fakeDecider{script: []scripted{{err: errors.New("llm unavailable")}}}

	r, resolved, state := runStaticTest(t, dec, testParams())

	assert.False(t, resolved)
	assert.Nil(t, r)
	assert.Equal(t, 1, state.usage.Calls)
}

func TestStaticEscalatesOnInvalidAction(t *testing.T) {
	dec := &fakeDecider{script: []scripted{{response: `{"type":"levitate"}`}}}

	_, resolved, _ := runStaticTest(t, dec, testParams())

	assert.False(t, resolved)
}

func TestStaticEscalatesOnSchemaRejection(t *testing.T) {
	dec := &fakeDecider{script: []scripted{
		{response: `{"type":"done","result":"free text"}`},
	}}
	p := testParams()
	p.schemaValidate = func([]byte) error { return errors.New("expected an object") }

	_, resolved, state := runStaticTest(t, dec, p)

	assert.False(t, resolved)
	assert.Empty(t, state.actions)
}

func TestStaticAborted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dec := &fakeDecider{}
	state := freshState()

	r, resolved := runStatic(ctx, dec, testParams(), staticPage, "https://news.example.com/", state, nil, nil, zap.NewNop())

	require.True(t, resolved)
	assert.Equal(t, StatusAborted, r.Status)
	assert.Empty(t, dec.requests)
}
