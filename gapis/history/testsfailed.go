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

	"golang.org/x/exp/slices"

	"github.com/jpark37/renderdoc/gapis/api"
	"github.com/jpark37/renderdoc/gapis/gfxapi"
	"github.com/jpark37/renderdoc/gapis/replay"
)

// Pipeline rewrite flags for the per-test variants. Combined freely; each
// flag independently modifies the cloned base state.
const (
	pipeDisableCulling = 1 << iota
	pipeDisableDepthTest
	pipeDisableStencilTest
	pipeDisableDepthBoundsTest
	pipeFixedColorShader
	pipeIntersectOriginalScissor
)

type pipeKey struct {
	base  gfxapi.ResourceID
	flags uint32
}

type queryKey struct {
	event api.EventID
	test  testFlags
}

// testsFailedPass replays each surviving draw once per enabled
// fixed-function test, with every not-yet-determined test disabled, under
// its own occlusion query. A zero sample count identifies the test that
// rejected the fragment.
type testsFailedPass struct {
	replay.NopHooks
	callback

	events []api.EventID

	flags          map[api.EventID]testFlags
	earlyFragments map[api.EventID]bool

	pipes   map[pipeKey]gfxapi.ResourceID
	queries map[queryKey]uint32
	results []uint64
}

func newTestsFailedPass(cb callback, pool gfxapi.ResourceID, events []api.EventID) *testsFailedPass {
	p := &testsFailedPass{
		callback:       cb,
		events:         events,
		flags:          map[api.EventID]testFlags{},
		earlyFragments: map[api.EventID]bool{},
		pipes:          map[pipeKey]gfxapi.ResourceID{},
		queries:        map[queryKey]uint32{},
	}
	p.pool = pool
	return p
}

func (p *testsFailedPass) PreDraw(ctx context.Context, id api.EventID, cmd replay.CommandBuffer) {
	if p.err != nil || !slices.Contains(p.events, id) {
		return
	}
	st := p.ctrl.CmdRenderState()
	prev := st.Clone()

	info, err := p.builder.PipelineInfo(st.Pipeline)
	if err != nil {
		p.fail(ctx, err)
		return
	}
	scissors := info.Scissors
	if info.DynamicScissor {
		scissors = st.Scissors
	}
	flags := calculateEventFlags(info, scissors, p.info.x, p.info.y, p.info.sampleMask,
		p.ctrl.Features().IndependentBlend)
	p.flags[id] = flags
	// With early fragment tests depth/stencil run before the shader, so
	// shader discard is blamed after them instead of before.
	p.earlyFragments[id] = info.EarlyFragmentTests

	fbIndex := p.framebufferIndex(st.FramebufferAttachments)
	if err := p.replayDrawWithTests(ctx, cmd, id, flags, st.Pipeline, fbIndex); err != nil {
		p.fail(ctx, err)
	}

	st.Assign(prev)
	p.ctrl.BindPipeline(cmd, replay.BindGraphics, false)
}

// replayDrawWithTests issues one sub-draw per test in the fixed order
// culling, scissor, sample mask, depth bounds, stencil, depth, shader
// discard. A statically failing culling, scissor or sample mask state stops
// the whole ladder since no later sub-draw could rasterize anything; a
// statically failing stencil or depth test only skips its own sub-draw, as
// the later ones disable those tests anyway.
func (p *testsFailedPass) replayDrawWithTests(ctx context.Context, cmd replay.CommandBuffer, id api.EventID, flags testFlags, base gfxapi.ResourceID, fbIndex uint32) error {
	if flags&testMustFailCulling != 0 {
		return nil
	}

	info, err := p.builder.PipelineInfo(base)
	if err != nil {
		return err
	}
	// The fragment shader is always replaced so early fragment tests in it
	// cannot skew the earlier sub-tests; other stages only when they have
	// side effects.
	replacements, err := p.replacementShaders(ctx, id, info)
	if err != nil {
		return err
	}

	st := p.ctrl.CmdRenderState()
	prevScissors := append([]gfxapi.Rect2D(nil), st.Scissors...)
	if info.DynamicScissor {
		for i := range st.Scissors {
			if i < len(st.Viewports) {
				st.Scissors[i] = scissorToPixel(st.Viewports[i], p.info.x, p.info.y)
			}
		}
	}

	runTest := func(pipeFlags uint32, test testFlags) error {
		pipe, err := p.testPipeline(ctx, base, pipeFlags, info.DynamicScissor, replacements, fbIndex)
		if err != nil {
			return err
		}
		p.replayDraw(cmd, pipe, id, test)
		return nil
	}

	if flags&testEnabledCulling != 0 {
		err := runTest(pipeDisableDepthTest|pipeDisableDepthBoundsTest|pipeDisableStencilTest|pipeFixedColorShader,
			testEnabledCulling)
		if err != nil {
			return err
		}
	}

	if flags&testMustFailScissor != 0 {
		return nil
	}
	if flags&(testEnabledScissor|testMustPassScissor) == testEnabledScissor {
		// The scissor sub-test keeps the original scissor in play by
		// intersecting it with the pixel. This mutates the dynamic scissor
		// for the later sub-tests, but those run after the scissor stage so
		// the result is unaffected.
		if info.DynamicScissor {
			for i := range st.Scissors {
				if i < len(prevScissors) {
					st.Scissors[i] = intersectScissors(prevScissors[i], st.Scissors[i])
				}
			}
		}
		err := runTest(pipeIntersectOriginalScissor|pipeDisableDepthTest|pipeDisableDepthBoundsTest|pipeDisableStencilTest|pipeFixedColorShader,
			testEnabledScissor)
		if err != nil {
			return err
		}
	}

	if flags&testMustFailSampleMask != 0 {
		return nil
	}
	if flags&testEnabledSampleMask != 0 {
		err := runTest(pipeDisableDepthTest|pipeDisableDepthBoundsTest|pipeDisableStencilTest|pipeFixedColorShader,
			testEnabledSampleMask)
		if err != nil {
			return err
		}
	}

	if flags&testEnabledDepthBounds != 0 {
		err := runTest(pipeDisableDepthTest|pipeDisableStencilTest|pipeFixedColorShader,
			testEnabledDepthBounds)
		if err != nil {
			return err
		}
	}

	if flags&(testEnabledStencil|testMustFailStencil) == testEnabledStencil {
		err := runTest(pipeDisableDepthTest|pipeFixedColorShader, testEnabledStencil)
		if err != nil {
			return err
		}
	}

	if flags&(testEnabledDepth|testMustFailDepth) == testEnabledDepth {
		// The stencil sub-test may have modified stencil values, so it is
		// disabled here rather than left in its original state.
		err := runTest(pipeDisableStencilTest|pipeFixedColorShader, testEnabledDepth)
		if err != nil {
			return err
		}
	}

	if flags&testEnabledDiscard != 0 {
		// Original fragment shader, everything else off: any sample
		// counted means the shader did not discard.
		err := runTest(pipeDisableDepthTest|pipeDisableDepthBoundsTest|pipeDisableStencilTest,
			testEnabledDiscard)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *testsFailedPass) replacementShaders(ctx context.Context, id api.EventID, info *gfxapi.Pipeline) ([gfxapi.StageCount]gfxapi.ResourceID, error) {
	var out [gfxapi.StageCount]gfxapi.ResourceID
	sideEffects := p.ctrl.StageSideEffects(id)
	for s := gfxapi.ShaderStage(0); s < gfxapi.StageCount; s++ {
		if !info.Shaders[s].Bound() {
			continue
		}
		if !sideEffects.Has(s) && s != gfxapi.StageFragment {
			continue
		}
		sh, err := p.shaders.sideEffectFreeShader(ctx, info.Shaders[s].Module, info.Shaders[s].EntryPoint)
		if err != nil {
			return out, err
		}
		out[s] = sh
	}
	return out, nil
}

// testPipeline builds the variant for one sub-test, memoized by (base,
// flags).
func (p *testsFailedPass) testPipeline(ctx context.Context, base gfxapi.ResourceID, pipeFlags uint32, dynamicScissor bool, replacements [gfxapi.StageCount]gfxapi.ResourceID, fbIndex uint32) (gfxapi.ResourceID, error) {
	key := pipeKey{base, pipeFlags}
	if pipe, ok := p.pipes[key]; ok {
		return pipe, nil
	}

	info, err := p.builder.PipelineInfo(base)
	if err != nil {
		return gfxapi.NilResource, err
	}
	q := info.Clone()

	q.SampleMask = p.info.sampleMask
	// The draw replays several times; depth writes would contaminate the
	// later sub-tests.
	q.DepthWrite = false

	if pipeFlags&pipeDisableCulling != 0 {
		q.CullMode = gfxapi.CullNone
	}
	if pipeFlags&pipeDisableDepthTest != 0 {
		q.DepthTest = false
	}
	if pipeFlags&pipeDisableStencilTest != 0 {
		q.StencilTest = false
	}
	if pipeFlags&pipeDisableDepthBoundsTest != 0 {
		q.DepthBoundsTest = false
	}

	for s := gfxapi.ShaderStage(0); s < gfxapi.StageCount; s++ {
		if s == gfxapi.StageFragment && pipeFlags&pipeFixedColorShader != 0 {
			sh, err := p.shaders.fixedColorShader(ctx, fbIndex)
			if err != nil {
				return gfxapi.NilResource, err
			}
			q.Shaders[s] = gfxapi.ShaderBinding{Module: sh, EntryPoint: "main"}
			continue
		}
		if !replacements[s].IsNil() {
			q.Shaders[s].Module = replacements[s]
		}
	}

	if !dynamicScissor {
		for i := range q.Scissors {
			if i >= len(q.Viewports) {
				break
			}
			pixel := scissorToPixel(q.Viewports[i], p.info.x, p.info.y)
			if pipeFlags&pipeIntersectOriginalScissor != 0 {
				pixel = intersectScissors(info.Scissors[i], pixel)
			}
			q.Scissors[i] = pixel
		}
	}

	pipe, err := p.builder.CreateGraphicsPipeline(ctx, q)
	if err != nil {
		return gfxapi.NilResource, err
	}
	p.pipes[key] = pipe
	return pipe, nil
}

func (p *testsFailedPass) replayDraw(cmd replay.CommandBuffer, pipe gfxapi.ResourceID, id api.EventID, test testFlags) {
	st := p.ctrl.CmdRenderState()
	st.Pipeline = pipe
	p.ctrl.BindPipeline(cmd, replay.BindGraphics, false)

	query := uint32(len(p.queries))
	cmd.BeginQuery(p.pool, query)
	cmd.Draw(p.ctrl.Draw(id))
	cmd.EndQuery(p.pool, query)
	p.queries[queryKey{id, test}] = query
}

func (p *testsFailedPass) fetchResults(ctx context.Context) error {
	if len(p.queries) == 0 {
		return nil
	}
	results, err := p.builder.FetchQueryResults(ctx, p.pool, uint32(len(p.queries)))
	if err != nil {
		return err
	}
	p.results = results
	return nil
}

func (p *testsFailedPass) eventFlags(id api.EventID) testFlags { return p.flags[id] }

func (p *testsFailedPass) hasEarlyFragments(id api.EventID) bool { return p.earlyFragments[id] }

// occlusionResult returns the sample count of the sub-draw for (event,
// test). Absent queries count as zero samples.
func (p *testsFailedPass) occlusionResult(id api.EventID, test testFlags) uint64 {
	q, ok := p.queries[queryKey{id, test}]
	if !ok || int(q) >= len(p.results) {
		return 0
	}
	return p.results[q]
}

func (p *testsFailedPass) destroy(ctx context.Context) {
	for _, pipe := range p.pipes {
		p.builder.Destroy(ctx, pipe)
	}
	p.callback.destroy(ctx)
}
