// Copyright (C) 2020 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpark37/renderdoc/gapis/api"
	"github.com/jpark37/renderdoc/gapis/config"
	"github.com/jpark37/renderdoc/gapis/gfxapi"
)

func runHistory(t *testing.T, d *fakeDevice) []Modification {
	t.Helper()
	history, err := PixelHistory(context.Background(), fakeController{d}, fakeBuilder{d},
		config.Default(), d.usages(), d.target, 5, 5, api.Subresource{})
	require.NoError(t, err)
	return history
}

func assertColor(t *testing.T, want [4]float32, got [4]float32) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-2, "channel %d", i)
	}
}

// Single draw, one fragment, every test passes.
func TestSingleFragmentDraw(t *testing.T) {
	d := newFakeDevice()
	red := [4]float32{1, 0, 0, 1}
	d.addDraw(3, &fakeEvent{frags: []fakeFrag{{prim: 4, color: red, depth: 0.5}}})

	history := runHistory(t, d)
	require.Len(t, history, 1)

	mod := history[0]
	assert.Equal(t, api.EventID(3), mod.Event)
	assert.Equal(t, uint32(0), mod.FragIndex)
	assert.Equal(t, int32(4), mod.Primitive)
	assert.True(t, mod.Passed())
	assert.False(t, mod.DirectWrite)
	assertColor(t, d.initColor, mod.PreMod.Color)
	assertColor(t, red, mod.PostMod.Color)
	assert.Equal(t, red, mod.ShaderOut.Color)
	assert.NotEqual(t, mod.PreMod.Color, mod.PostMod.Color)
}

// A draw whose geometry never touches the pixel is filtered by the
// occlusion pass and produces no entry.
func TestDrawMissingPixelIsExcluded(t *testing.T) {
	d := newFakeDevice()
	d.addDraw(2, &fakeEvent{})

	history := runHistory(t, d)
	assert.Empty(t, history)
}

// Three overlapping fragments, the middle one discarded by the shader: the
// discarded entry copies the previous post-modification value, and the last
// entry reads the per-fragment slot shifted by the discard offset.
func TestFragmentDiscardOffset(t *testing.T) {
	d := newFakeDevice()
	c0 := [4]float32{0.2, 0, 0, 1}
	c1 := [4]float32{0, 0.2, 0, 1}
	c2 := [4]float32{0, 0, 0.2, 1}
	d.addDraw(5, &fakeEvent{frags: []fakeFrag{
		{prim: 0, color: c0},
		{prim: 1, color: c1, discarded: true},
		{prim: 2, color: c2},
	}})

	history := runHistory(t, d)
	require.Len(t, history, 3)

	for f := 0; f < 3; f++ {
		assert.Equal(t, api.EventID(5), history[f].Event)
		assert.Equal(t, uint32(f), history[f].FragIndex)
		assert.Equal(t, int32(f), history[f].Primitive)
	}

	assert.False(t, history[0].ShaderDiscarded)
	assert.True(t, history[1].ShaderDiscarded)
	assert.False(t, history[2].ShaderDiscarded)

	// Fragment 0 reads slot 0, fragment 2 reads slot 1.
	assert.Equal(t, c0, history[0].ShaderOut.Color)
	assert.Equal(t, c2, history[2].ShaderOut.Color)

	// A discarded fragment leaves the pixel untouched.
	assertColor(t, c0, history[0].PostMod.Color)
	assert.Equal(t, history[0].PostMod, history[1].PostMod)
	assertColor(t, c2, history[2].PostMod.Color)
}

// A clear is a candidate unconditionally and carries pre/post values only.
func TestClearEvent(t *testing.T) {
	d := newFakeDevice()
	blue := [4]float32{0, 0, 1, 1}
	d.addClear(7, blue)

	history := runHistory(t, d)
	require.Len(t, history, 1)

	mod := history[0]
	assert.Equal(t, api.EventID(7), mod.Event)
	assert.False(t, mod.DirectWrite)
	assert.True(t, mod.Passed())
	assertColor(t, d.initColor, mod.PreMod.Color)
	assertColor(t, blue, mod.PostMod.Color)
}

func TestClearThenDrawOrdering(t *testing.T) {
	d := newFakeDevice()
	blue := [4]float32{0, 0, 1, 1}
	green := [4]float32{0, 1, 0, 1}
	d.addClear(2, blue)
	d.addDraw(4, &fakeEvent{frags: []fakeFrag{{prim: 0, color: green}}})

	history := runHistory(t, d)
	require.Len(t, history, 2)
	assert.Equal(t, api.EventID(2), history[0].Event)
	assert.Equal(t, api.EventID(4), history[1].Event)
	assertColor(t, blue, history[1].PreMod.Color)
	assertColor(t, green, history[1].PostMod.Color)
}

// A must-fail culling state is resolved statically: backface culled is the
// only flag, and no per-test queries run for the event.
func TestCullingShortCircuit(t *testing.T) {
	d := newFakeDevice()
	p := d.defaultPipeline()
	p.CullMode = gfxapi.CullFrontAndBack
	pipe := d.registerPipeline(p)
	d.addDraw(3, &fakeEvent{pipeline: pipe, frags: []fakeFrag{{prim: 0, color: [4]float32{1, 0, 0, 1}}}})

	history := runHistory(t, d)
	require.Len(t, history, 1)

	mod := history[0]
	assert.True(t, mod.BackfaceCulled)
	assert.False(t, mod.ScissorClipped)
	assert.False(t, mod.SampleMasked)
	assert.False(t, mod.DepthTestFailed)
	assert.False(t, mod.StencilTestFailed)
	assert.False(t, mod.ShaderDiscarded)
	assertColor(t, d.initColor, mod.PostMod.Color)
}

// A baked scissor that excludes the pixel is also resolved statically.
func TestScissorClipped(t *testing.T) {
	d := newFakeDevice()
	p := d.defaultPipeline()
	p.Scissors = []gfxapi.Rect2D{rect(20, 20, 10, 10)}
	pipe := d.registerPipeline(p)
	d.addDraw(3, &fakeEvent{pipeline: pipe, frags: []fakeFrag{{prim: 0, color: [4]float32{1, 0, 0, 1}}}})

	history := runHistory(t, d)
	require.Len(t, history, 1)
	assert.True(t, history[0].ScissorClipped)
	assert.False(t, history[0].Passed())
}

// A depth test failure is blamed through the per-test replay.
func TestDepthTestFailed(t *testing.T) {
	d := newFakeDevice()
	p := d.defaultPipeline()
	p.DepthTest = true
	p.DepthCompareOp = gfxapi.CompareLess
	pipe := d.registerPipeline(p)
	d.addDraw(3, &fakeEvent{
		pipeline:  pipe,
		failDepth: true,
		frags:     []fakeFrag{{prim: 0, color: [4]float32{1, 0, 0, 1}}},
	})

	history := runHistory(t, d)
	require.Len(t, history, 1)

	mod := history[0]
	assert.True(t, mod.DepthTestFailed)
	assert.False(t, mod.ShaderDiscarded)
	assert.Equal(t, mod.PreMod.Color, mod.PostMod.Color)
}

// A depth test that can never pass is seeded statically, and a stencil
// failure found by the test replay is reported alongside it.
func TestStaticDepthFailKeepsStencilBlame(t *testing.T) {
	d := newFakeDevice()
	p := d.defaultPipeline()
	p.DepthTest = true
	p.DepthCompareOp = gfxapi.CompareNever
	p.StencilTest = true
	p.Front.CompareOp = gfxapi.CompareLess
	p.Back.CompareOp = gfxapi.CompareLess
	pipe := d.registerPipeline(p)
	d.addDraw(3, &fakeEvent{
		pipeline:    pipe,
		failDepth:   true,
		failStencil: true,
		frags:       []fakeFrag{{prim: 0, color: [4]float32{1, 0, 0, 1}}},
	})

	history := runHistory(t, d)
	require.Len(t, history, 1)

	mod := history[0]
	assert.True(t, mod.DepthTestFailed)
	assert.True(t, mod.StencilTestFailed)
	assert.False(t, mod.ShaderDiscarded)
	assert.False(t, mod.Passed())
	assert.Equal(t, mod.PreMod.Color, mod.PostMod.Color)
}

// A transfer that reads the target is not a modification; one that writes it
// is recorded as a direct write.
func TestCopyUsageDirection(t *testing.T) {
	d := newFakeDevice()
	white := [4]float32{1, 1, 1, 1}
	d.addTransfer(2, api.UsageCopySrc, white)
	d.addTransfer(4, api.UsageCopyDst, white)

	history := runHistory(t, d)
	require.Len(t, history, 1)
	assert.Equal(t, api.EventID(4), history[0].Event)
	assert.True(t, history[0].DirectWrite)
	assertColor(t, white, history[0].PostMod.Color)
}

// Fragment counts above 127 survive the readback decode and expand fully.
func TestManyOverlappingFragments(t *testing.T) {
	d := newFakeDevice()
	var frags []fakeFrag
	for i := 0; i < 130; i++ {
		frags = append(frags, fakeFrag{prim: int32(i), color: [4]float32{0.1, 0, 0, 1}})
	}
	d.addDraw(3, &fakeEvent{frags: frags})

	history := runHistory(t, d)
	require.Len(t, history, 130)
	assert.Equal(t, uint32(129), history[129].FragIndex)
	assert.Equal(t, int32(129), history[129].Primitive)
}

// The per-test pool reserves six queries per draw event.
func TestQueryPoolSizing(t *testing.T) {
	d := newFakeDevice()
	red := [4]float32{1, 0, 0, 1}
	d.addDraw(1, &fakeEvent{frags: []fakeFrag{{prim: 0, color: red}}})
	d.addDraw(2, &fakeEvent{frags: []fakeFrag{{prim: 0, color: red}}})

	runHistory(t, d)

	// Pass 1 sizes its pool to the event count, pass 3 to six per draw.
	assert.Contains(t, d.poolSizes, uint32(2))
	assert.Contains(t, d.poolSizes, uint32(12))
}

func TestEmptyInputs(t *testing.T) {
	d := newFakeDevice()

	history, err := PixelHistory(context.Background(), fakeController{d}, fakeBuilder{d},
		config.Default(), nil, d.target, 5, 5, api.Subresource{})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUnsupportedDevice(t *testing.T) {
	d := newFakeDevice()
	d.features.OcclusionQueries = false
	d.addDraw(1, &fakeEvent{frags: []fakeFrag{{prim: 0}}})

	history := runHistory(t, d)
	assert.Empty(t, history)
}

func TestUndefinedTargetFormat(t *testing.T) {
	d := newFakeDevice()
	d.images[d.target].Format = gfxapi.FormatUndefined
	d.addDraw(1, &fakeEvent{frags: []fakeFrag{{prim: 0}}})

	history := runHistory(t, d)
	assert.Empty(t, history)
}

// A second invocation over the same events reproduces the first result;
// scratch resources do not leak state between runs.
func TestRepeatedInvocationsAgree(t *testing.T) {
	d := newFakeDevice()
	d.addClear(1, [4]float32{0, 0, 1, 1})
	d.addDraw(4, &fakeEvent{frags: []fakeFrag{
		{prim: 0, color: [4]float32{0.5, 0, 0, 1}},
		{prim: 1, color: [4]float32{0, 0.5, 0, 1}},
	}})

	first := runHistory(t, d)
	second := runHistory(t, d)
	assert.Equal(t, first, second)
}

// Fragment counts respect the configured cap.
func TestMaxFragmentsPerEvent(t *testing.T) {
	d := newFakeDevice()
	var frags []fakeFrag
	for i := 0; i < 4; i++ {
		frags = append(frags, fakeFrag{prim: int32(i), color: [4]float32{0.2, 0, 0, 1}})
	}
	d.addDraw(3, &fakeEvent{frags: frags})

	cfg := config.Default()
	cfg.MaxFragmentsPerEvent = 2
	history, err := PixelHistory(context.Background(), fakeController{d}, fakeBuilder{d},
		cfg, d.usages(), d.target, 5, 5, api.Subresource{})
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
