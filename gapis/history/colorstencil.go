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

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"

	"github.com/jpark37/renderdoc/gapis/api"
	"github.com/jpark37/renderdoc/gapis/gfxapi"
	"github.com/jpark37/renderdoc/gapis/replay"
)

// counterPipelines are the two counting variants of one base pipeline: one
// with a fixed color shader that can never discard, one keeping the original
// fragment shader.
type counterPipelines struct {
	fixed    gfxapi.ResourceID
	original gfxapi.ResourceID
}

// colorStencilPass records, for every candidate event, the pre and post
// modification values and the two fragment counts (with and without shader
// discard) obtained by replaying the draw against the stencil counter
// target.
type colorStencilPass struct {
	replay.NopHooks
	callback

	events []api.EventID

	// eventIndices maps event id to readback record slot, in insertion
	// order. Events replayed inside untracked secondary command buffers
	// never get a slot.
	eventIndices map[api.EventID]int
	order        []api.EventID

	pipes map[gfxapi.ResourceID]counterPipelines
}

func newColorStencilPass(cb callback, events []api.EventID) *colorStencilPass {
	return &colorStencilPass{
		callback:     cb,
		events:       events,
		eventIndices: map[api.EventID]int{},
		pipes:        map[gfxapi.ResourceID]counterPipelines{},
	}
}

func (p *colorStencilPass) PreDraw(ctx context.Context, id api.EventID, cmd replay.CommandBuffer) {
	if p.err != nil || !slices.Contains(p.events, id) || !p.ctrl.IsPrimaryCmd() {
		return
	}
	st := p.ctrl.CmdRenderState()
	prev := st.Clone()

	p.ctrl.EndRenderPass(cmd)

	storeOffset := uint64(len(p.eventIndices)) * eventInfoSize
	depthImage, depthFormat := p.drawDepthTarget(id)
	p.copyTargetValue(cmd, depthImage, depthFormat, storeOffset+eventInfoPremod)

	if err := p.countFragments(ctx, id, cmd, storeOffset); err != nil {
		p.fail(ctx, err)
	}

	st.Assign(prev)
	if !st.Pipeline.IsNil() {
		p.ctrl.BeginRenderPassAndApplyState(cmd, replay.BindGraphics)
	}
}

// countFragments replays the draw twice against the counter target: first
// with a fixed color shader that cannot discard, then with the original
// fragment shader. The stencil byte after each replay is the fragment
// count.
func (p *colorStencilPass) countFragments(ctx context.Context, id api.EventID, cmd replay.CommandBuffer, storeOffset uint64) error {
	st := p.ctrl.CmdRenderState()

	newRp, err := p.createRenderPass(ctx, st.RenderPass, st.Framebuffer, st.Subpass, gfxapi.NilResource, gfxapi.FormatUndefined)
	if err != nil {
		return err
	}
	newFb, atts, err := p.createFramebuffer(ctx, st.RenderPass, newRp, st.Subpass, st.Framebuffer, p.info.counterView, gfxapi.NilResource)
	if err != nil {
		return err
	}
	fbIndex := p.framebufferIndex(st.FramebufferAttachments)

	pipes, err := p.counterPipelines(ctx, id, st.Pipeline, newRp, fbIndex)
	if err != nil {
		return err
	}
	if info, err := p.builder.PipelineInfo(st.Pipeline); err == nil && info.DynamicScissor {
		p.scissorToPixel(info)
	}

	st.Framebuffer = newFb
	st.FramebufferAttachments = atts
	st.RenderPass = newRp
	st.Subpass = 0

	st.Pipeline = pipes.fixed
	p.replayDraw(cmd, id)
	p.copyPixel(cmd, p.counterStencilCopy(), storeOffset+eventInfoWithoutDiscard)

	st.Pipeline = pipes.original
	p.replayDraw(cmd, id)
	p.copyPixel(cmd, p.counterStencilCopy(), storeOffset+eventInfoWithDiscard)
	return nil
}

// replayDraw opens the counter render pass, clears the counter stencil at
// the pixel, re-issues the draw and closes the pass again.
func (p *colorStencilPass) replayDraw(cmd replay.CommandBuffer, id api.EventID) {
	p.ctrl.BeginRenderPassAndApplyState(cmd, replay.BindGraphics)
	cmd.ClearStencilAttachment(p.pixelRect(), 0)
	cmd.Draw(p.ctrl.Draw(id))
	p.ctrl.EndRenderPass(cmd)
}

func (p *colorStencilPass) counterPipelines(ctx context.Context, id api.EventID, base gfxapi.ResourceID, rp gfxapi.ResourceID, fbIndex uint32) (counterPipelines, error) {
	if pipes, ok := p.pipes[base]; ok {
		return pipes, nil
	}
	q, err := p.makeCounterPipeline(ctx, id, base)
	if err != nil {
		return counterPipelines{}, err
	}
	q.RenderPass = rp
	// Only the stencil counter matters; keep the color targets untouched.
	for i := range q.Blends {
		q.Blends[i].WriteMask = 0
	}

	var pipes counterPipelines
	if pipes.original, err = p.builder.CreateGraphicsPipeline(ctx, q); err != nil {
		return counterPipelines{}, err
	}
	sh, err := p.shaders.fixedColorShader(ctx, fbIndex)
	if err != nil {
		return counterPipelines{}, err
	}
	q.Shaders[gfxapi.StageFragment] = gfxapi.ShaderBinding{Module: sh, EntryPoint: "main"}
	if pipes.fixed, err = p.builder.CreateGraphicsPipeline(ctx, q); err != nil {
		return counterPipelines{}, err
	}
	p.pipes[base] = pipes
	return pipes, nil
}

func (p *colorStencilPass) PostDraw(ctx context.Context, id api.EventID, cmd replay.CommandBuffer) bool {
	if p.err != nil || !slices.Contains(p.events, id) || !p.ctrl.IsPrimaryCmd() {
		return false
	}
	p.ctrl.EndRenderPass(cmd)

	storeOffset := uint64(len(p.eventIndices)) * eventInfoSize
	depthImage, depthFormat := p.drawDepthTarget(id)
	p.copyTargetValue(cmd, depthImage, depthFormat, storeOffset+eventInfoPostmod)

	p.ctrl.BeginRenderPassAndApplyState(cmd, replay.BindGraphics)
	p.recordIndex(id)
	return false
}

func (p *colorStencilPass) PreDispatch(ctx context.Context, id api.EventID, cmd replay.CommandBuffer) {
	if p.err != nil || !slices.Contains(p.events, id) {
		return
	}
	storeOffset := uint64(len(p.eventIndices)) * eventInfoSize
	p.copyTargetValue(cmd, gfxapi.NilResource, gfxapi.FormatUndefined, storeOffset+eventInfoPremod)
}

func (p *colorStencilPass) PostDispatch(ctx context.Context, id api.EventID, cmd replay.CommandBuffer) bool {
	if p.err != nil || !slices.Contains(p.events, id) {
		return false
	}
	storeOffset := uint64(len(p.eventIndices)) * eventInfoSize
	p.copyTargetValue(cmd, gfxapi.NilResource, gfxapi.FormatUndefined, storeOffset+eventInfoPostmod)
	p.recordIndex(id)
	return false
}

func (p *colorStencilPass) PreMisc(ctx context.Context, id api.EventID, flags api.DrawFlags, cmd replay.CommandBuffer) {
	p.PreDispatch(ctx, id, cmd)
}

func (p *colorStencilPass) PostMisc(ctx context.Context, id api.EventID, flags api.DrawFlags, cmd replay.CommandBuffer) bool {
	if p.err != nil || !slices.Contains(p.events, id) {
		return false
	}
	// A clear that begins a render pass has to be observed outside it.
	if flags&api.DrawBeginPass != 0 {
		p.ctrl.EndRenderPass(cmd)
	}
	ret := p.PostDispatch(ctx, id, cmd)
	if flags&api.DrawBeginPass != 0 {
		p.ctrl.BeginRenderPassAndApplyState(cmd, replay.BindNone)
	}
	return ret
}

func (p *colorStencilPass) SplitSecondary() bool { return true }

// PreExecuteSecondary captures a pre-modification value for the first
// candidate event inside a secondary command buffer range. Individual
// events inside the range are not tracked.
func (p *colorStencilPass) PreExecuteSecondary(ctx context.Context, base, first, last api.EventID, cmd replay.CommandBuffer) {
	id, ok := p.firstInRange(first, last)
	if !ok || p.err != nil {
		return
	}
	p.ctrl.EndRenderPass(cmd)
	storeOffset := uint64(len(p.eventIndices)) * eventInfoSize
	p.copyTargetValue(cmd, gfxapi.NilResource, gfxapi.FormatUndefined, storeOffset+eventInfoPremod)
	p.recordIndex(id)
	p.ctrl.BeginRenderPassAndApplyState(cmd, replay.BindNone)
}

// PostExecuteSecondary captures the post-modification value for the last
// candidate event in the range, reusing the slot recorded by
// PreExecuteSecondary when the range held a single candidate.
func (p *colorStencilPass) PostExecuteSecondary(ctx context.Context, base, first, last api.EventID, cmd replay.CommandBuffer) {
	id, ok := p.lastInRange(first, last)
	if !ok || p.err != nil {
		return
	}
	p.ctrl.EndRenderPass(cmd)
	var storeOffset uint64
	if idx, ok := p.eventIndices[id]; ok {
		storeOffset = uint64(idx) * eventInfoSize
	} else {
		storeOffset = uint64(len(p.eventIndices)) * eventInfoSize
		p.recordIndex(id)
	}
	p.copyTargetValue(cmd, gfxapi.NilResource, gfxapi.FormatUndefined, storeOffset+eventInfoPostmod)
	p.ctrl.BeginRenderPassAndApplyState(cmd, replay.BindNone)
}

func (p *colorStencilPass) AliasEvent(ctx context.Context, primary, alias api.EventID) {
	log.FromContext(ctx).Warn("aliased events are not supported, results might be inaccurate",
		"primary", primary, "alias", alias)
}

func (p *colorStencilPass) recordIndex(id api.EventID) {
	if _, ok := p.eventIndices[id]; ok {
		return
	}
	p.eventIndices[id] = len(p.eventIndices)
	p.order = append(p.order, id)
}

// eventIndex returns the readback slot for an event. Events replayed in
// untracked contexts report no slot and are skipped by aggregation.
func (p *colorStencilPass) eventIndex(id api.EventID) (int, bool) {
	idx, ok := p.eventIndices[id]
	return idx, ok
}

func (p *colorStencilPass) firstInRange(first, last api.EventID) (api.EventID, bool) {
	for _, e := range p.events {
		if e >= first && e <= last {
			return e, true
		}
	}
	return 0, false
}

func (p *colorStencilPass) lastInRange(first, last api.EventID) (api.EventID, bool) {
	for i := len(p.events) - 1; i >= 0; i-- {
		if e := p.events[i]; e >= first && e <= last {
			return e, true
		}
	}
	return 0, false
}

func (p *colorStencilPass) destroy(ctx context.Context) {
	for _, pipes := range p.pipes {
		p.builder.Destroy(ctx, pipes.fixed)
		p.builder.Destroy(ctx, pipes.original)
	}
	p.callback.destroy(ctx)
}
