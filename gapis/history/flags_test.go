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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jpark37/renderdoc/gapis/gfxapi"
)

func basePipeline() *gfxapi.Pipeline {
	p := &gfxapi.Pipeline{
		SampleMask: ^uint32(0),
	}
	p.Shaders[gfxapi.StageFragment] = gfxapi.ShaderBinding{
		Module:     gfxapi.NewResourceID(),
		EntryPoint: "main",
	}
	return p
}

func TestEventFlagsDefaults(t *testing.T) {
	flags := calculateEventFlags(basePipeline(), nil, 5, 5, 1, false)

	// Sample mask and discard queries always run; nothing else is enabled
	// on a bare pipeline.
	assert.Equal(t, testEnabledSampleMask|testEnabledDiscard, flags)
}

func TestEventFlagsCulling(t *testing.T) {
	p := basePipeline()
	p.CullMode = gfxapi.CullBack
	flags := calculateEventFlags(p, nil, 5, 5, 1, false)
	assert.NotZero(t, flags&testEnabledCulling)
	assert.Zero(t, flags&testMustFailCulling)

	p.CullMode = gfxapi.CullFrontAndBack
	flags = calculateEventFlags(p, nil, 5, 5, 1, false)
	assert.NotZero(t, flags&testMustFailCulling)
}

func TestEventFlagsDepth(t *testing.T) {
	p := basePipeline()
	p.DepthTest = true
	p.DepthCompareOp = gfxapi.CompareLess
	flags := calculateEventFlags(p, nil, 5, 5, 1, false)
	assert.NotZero(t, flags&testEnabledDepth)

	p.DepthCompareOp = gfxapi.CompareAlways
	flags = calculateEventFlags(p, nil, 5, 5, 1, false)
	assert.Zero(t, flags&testEnabledDepth)

	p.DepthCompareOp = gfxapi.CompareNever
	flags = calculateEventFlags(p, nil, 5, 5, 1, false)
	assert.NotZero(t, flags&testMustFailDepth)
}

func TestEventFlagsStencilMustFail(t *testing.T) {
	p := basePipeline()
	p.StencilTest = true
	p.Front.CompareOp = gfxapi.CompareNever
	p.Back.CompareOp = gfxapi.CompareNever
	flags := calculateEventFlags(p, nil, 5, 5, 1, false)
	assert.NotZero(t, flags&testMustFailStencil)

	// Front face never passes, but back faces are culled anyway.
	p.Back.CompareOp = gfxapi.CompareAlways
	p.CullMode = gfxapi.CullBack
	flags = calculateEventFlags(p, nil, 5, 5, 1, false)
	assert.NotZero(t, flags&testMustFailStencil)

	// With the front faces culled the never-compare front face is moot.
	p.CullMode = gfxapi.CullFront
	flags = calculateEventFlags(p, nil, 5, 5, 1, false)
	assert.Zero(t, flags&testMustFailStencil)
}

func TestEventFlagsScissor(t *testing.T) {
	inside := []gfxapi.Rect2D{rect(0, 0, 10, 10)}
	outside := []gfxapi.Rect2D{rect(20, 20, 10, 10)}
	mixed := []gfxapi.Rect2D{rect(0, 0, 10, 10), rect(20, 20, 10, 10)}

	flags := calculateEventFlags(basePipeline(), inside, 5, 5, 1, false)
	assert.NotZero(t, flags&testEnabledScissor)
	assert.NotZero(t, flags&testMustPassScissor)
	assert.Zero(t, flags&testMustFailScissor)

	flags = calculateEventFlags(basePipeline(), outside, 5, 5, 1, false)
	assert.NotZero(t, flags&testMustFailScissor)

	flags = calculateEventFlags(basePipeline(), mixed, 5, 5, 1, false)
	assert.Zero(t, flags&testMustFailScissor)
	assert.Zero(t, flags&testMustPassScissor)
}

func TestEventFlagsSampleMask(t *testing.T) {
	p := basePipeline()
	p.SampleMask = 0b10
	flags := calculateEventFlags(p, nil, 5, 5, 0b01, false)
	assert.NotZero(t, flags&testMustFailSampleMask)

	flags = calculateEventFlags(p, nil, 5, 5, 0b10, false)
	assert.Zero(t, flags&testMustFailSampleMask)
}

func TestEventFlagsUnboundFragmentShader(t *testing.T) {
	p := basePipeline()
	p.Shaders[gfxapi.StageFragment] = gfxapi.ShaderBinding{}
	flags := calculateEventFlags(p, nil, 5, 5, 1, false)
	assert.NotZero(t, flags&unboundFragmentShader)
}

func TestEventFlagsBlending(t *testing.T) {
	p := basePipeline()
	p.Blends = []gfxapi.ColorBlendAttachment{
		{BlendEnable: false},
		{BlendEnable: true},
	}

	// Without independent blend only attachment 0 decides.
	flags := calculateEventFlags(p, nil, 5, 5, 1, false)
	assert.Zero(t, flags&blendingEnabled)

	flags = calculateEventFlags(p, nil, 5, 5, 1, true)
	assert.NotZero(t, flags&blendingEnabled)
}
