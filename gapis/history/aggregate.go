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

// seedStaticFlags applies the failures that are knowable from pipeline state
// alone, without replaying anything. Seeded flags survive even when the test
// replay blames an earlier pipeline stage as well. Stencil is left to the
// replay walk, which short-circuits on it in test order.
func seedStaticFlags(m *Modification, flags testFlags) {
	if flags&unboundFragmentShader != 0 {
		m.UnboundShader = true
	}
	if flags&testMustFailCulling != 0 {
		m.BackfaceCulled = true
	}
	if flags&testMustFailScissor != 0 {
		m.ScissorClipped = true
	}
	if flags&testMustFailSampleMask != 0 {
		m.SampleMasked = true
	}
	if flags&testMustFailDepth != 0 {
		m.DepthTestFailed = true
	}
}

// updateTestsFailed blames the first test whose isolated replay produced no
// samples, walking the pipeline's test order. Statically failing tests slot
// into the same walk so no query recorded after a short circuit is ever
// consulted. Shader discard slots in before the depth and stencil tests
// unless the shader declared early fragment tests. occlusion returns the
// sample count of the sub-draw for a test.
func updateTestsFailed(m *Modification, flags testFlags, earlyFragmentTests bool, occlusion func(testFlags) uint64) {
	if flags&testMustFailCulling != 0 {
		m.BackfaceCulled = true
		return
	}
	if flags&testEnabledCulling != 0 && occlusion(testEnabledCulling) == 0 {
		m.BackfaceCulled = true
		return
	}
	if flags&testMustFailScissor != 0 {
		m.ScissorClipped = true
		return
	}
	if flags&(testEnabledScissor|testMustPassScissor) == testEnabledScissor &&
		occlusion(testEnabledScissor) == 0 {
		m.ScissorClipped = true
		return
	}
	if flags&testMustFailSampleMask != 0 {
		m.SampleMasked = true
		return
	}
	if flags&testEnabledSampleMask != 0 && occlusion(testEnabledSampleMask) == 0 {
		m.SampleMasked = true
		return
	}
	discard := func() bool {
		if flags&testEnabledDiscard != 0 && occlusion(testEnabledDiscard) == 0 {
			m.ShaderDiscarded = true
			return true
		}
		return false
	}
	if !earlyFragmentTests && discard() {
		return
	}
	if flags&testEnabledDepthBounds != 0 && occlusion(testEnabledDepthBounds) == 0 {
		m.DepthBoundsFailed = true
		return
	}
	if flags&testMustFailStencil != 0 {
		m.StencilTestFailed = true
		return
	}
	if flags&testEnabledStencil != 0 && occlusion(testEnabledStencil) == 0 {
		m.StencilTestFailed = true
		return
	}
	if flags&testMustFailDepth != 0 {
		m.DepthTestFailed = true
		return
	}
	if flags&testEnabledDepth != 0 && occlusion(testEnabledDepth) == 0 {
		m.DepthTestFailed = true
		return
	}
	if earlyFragmentTests {
		discard()
	}
}
