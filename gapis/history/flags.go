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

import "github.com/jpark37/renderdoc/gapis/gfxapi"

// testFlags captures, per event, which fixed-function tests are enabled and
// which are statically guaranteed to fail or pass based on pipeline state
// alone.
type testFlags uint32

const (
	testEnabledCulling testFlags = 1 << iota
	testEnabledScissor
	testEnabledSampleMask
	testEnabledDepthBounds
	testEnabledStencil
	testEnabledDepth
	testEnabledDiscard

	blendingEnabled
	unboundFragmentShader

	testMustFailCulling
	testMustFailScissor
	testMustPassScissor
	testMustFailDepth
	testMustFailStencil
	testMustFailSampleMask
)

// calculateEventFlags derives the test flags for one draw from its pipeline
// state. scissors are the effective scissor rectangles (dynamic state when
// the pipeline declares it, baked state otherwise).
func calculateEventFlags(p *gfxapi.Pipeline, scissors []gfxapi.Rect2D, x, y, sampleMask uint32, independentBlend bool) testFlags {
	var flags testFlags

	if p.CullMode != gfxapi.CullNone {
		flags |= testEnabledCulling
	}
	if p.CullMode == gfxapi.CullFrontAndBack {
		flags |= testMustFailCulling
	}

	if p.DepthBoundsTest {
		flags |= testEnabledDepthBounds
	}
	if p.DepthTest {
		if p.DepthCompareOp != gfxapi.CompareAlways {
			flags |= testEnabledDepth
		}
		if p.DepthCompareOp == gfxapi.CompareNever {
			flags |= testMustFailDepth
		}
	}
	if p.StencilTest {
		if p.Front.CompareOp != gfxapi.CompareAlways || p.Back.CompareOp != gfxapi.CompareAlways {
			flags |= testEnabledStencil
		}
		switch {
		case p.Front.CompareOp == gfxapi.CompareNever && p.Back.CompareOp == gfxapi.CompareNever:
			flags |= testMustFailStencil
		case p.Front.CompareOp == gfxapi.CompareNever && p.CullMode == gfxapi.CullBack:
			flags |= testMustFailStencil
		case p.CullMode == gfxapi.CullFront && p.Back.CompareOp == gfxapi.CompareNever:
			flags |= testMustFailStencil
		}
	}

	// Scissor flags look at every rectangle: the pixel must be inside one
	// to possibly pass, and inside all for the test to be a no-op.
	if len(scissors) > 0 {
		flags |= testEnabledScissor
		inRegion, inAllRegions := false, true
		for _, s := range scissors {
			if int32(x) >= s.Offset.X && int32(y) >= s.Offset.Y &&
				int32(x) < s.Offset.X+int32(s.Extent.Width) &&
				int32(y) < s.Offset.Y+int32(s.Extent.Height) {
				inRegion = true
			} else {
				inAllRegions = false
			}
		}
		if !inRegion {
			flags |= testMustFailScissor
		}
		if inAllRegions {
			flags |= testMustPassScissor
		}
	}

	if independentBlend {
		for _, b := range p.Blends {
			if b.BlendEnable {
				flags |= blendingEnabled
				break
			}
		}
	} else if len(p.Blends) > 0 && p.Blends[0].BlendEnable {
		flags |= blendingEnabled
	}

	if !p.Shaders[gfxapi.StageFragment].Bound() {
		flags |= unboundFragmentShader
	}

	// The sample mask is always checked so its query exists for every draw.
	flags |= testEnabledSampleMask
	if p.SampleMask&sampleMask == 0 {
		flags |= testMustFailSampleMask
	}

	flags |= testEnabledDiscard
	return flags
}
