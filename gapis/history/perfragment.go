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

	"github.com/jpark37/renderdoc/gapis/api"
	"github.com/jpark37/renderdoc/gapis/gfxapi"
	"github.com/jpark37/renderdoc/gapis/replay"
)

// perFragmentPass isolates each fragment of a multi-fragment draw with an
// equal-compare stencil against the counter target: the reference selects
// the fragment, the increment makes every later fragment fail the compare.
// Per fragment it records the primitive id, the shader output value and, for
// all but the last fragment, the post-modification value of the target.
type perFragmentPass struct {
	replay.NopHooks
	callback

	// eventFragments holds the fragment count per event to expand, clamped
	// by the invocation's fragment limit.
	eventFragments map[api.EventID]uint32

	// eventOffsets maps event id to the index of its first fragmentInfo
	// record in the readback buffer.
	eventOffsets   map[api.EventID]uint32
	fragsProcessed uint32

	pipesToDestroy []gfxapi.ResourceID
}

func newPerFragmentPass(cb callback, eventFragments map[api.EventID]uint32) *perFragmentPass {
	return &perFragmentPass{
		callback:       cb,
		eventFragments: eventFragments,
		eventOffsets:   map[api.EventID]uint32{},
	}
}

// fragmentPipelines are the three variants replayed per fragment.
type fragmentPipelines struct {
	// primitiveID writes the primitive id into the RGBA32F substitute
	// target, with depth tests off so every fragment lands.
	primitiveID gfxapi.ResourceID
	// shaderOut writes the unblended fragment shader output into the
	// substitute target.
	shaderOut gfxapi.ResourceID
	// postMod replays against the original target to observe the value
	// after the selected fragment blended in.
	postMod gfxapi.ResourceID
}

func (p *perFragmentPass) PreDraw(ctx context.Context, id api.EventID, cmd replay.CommandBuffer) {
	frags := p.eventFragments[id]
	if p.err != nil || frags == 0 {
		return
	}
	st := p.ctrl.CmdRenderState()
	prev := st.Clone()

	p.ctrl.EndRenderPass(cmd)
	if err := p.replayFragments(ctx, id, frags, cmd); err != nil {
		p.fail(ctx, err)
	}

	st.Assign(prev)
	p.ctrl.BeginRenderPassAndApplyState(cmd, replay.BindGraphics)
}

func (p *perFragmentPass) replayFragments(ctx context.Context, id api.EventID, frags uint32, cmd replay.CommandBuffer) error {
	st := p.ctrl.CmdRenderState()

	// The target attachment becomes RGBA32F so primitive ids and shader
	// outputs survive unclamped.
	newRp, err := p.createRenderPass(ctx, st.RenderPass, st.Framebuffer, st.Subpass,
		p.info.target, gfxapi.FormatR32G32B32A32Sfloat)
	if err != nil {
		return err
	}
	newFb, atts, err := p.createFramebuffer(ctx, st.RenderPass, newRp, st.Subpass,
		st.Framebuffer, p.info.counterView, p.info.colorView)
	if err != nil {
		return err
	}
	fbIndex := p.framebufferIndex(st.FramebufferAttachments)

	info, err := p.builder.PipelineInfo(st.Pipeline)
	if err != nil {
		return err
	}
	pipes, err := p.createPipelines(ctx, id, info, newRp, fbIndex)
	if err != nil {
		return err
	}
	if info.DynamicScissor {
		p.scissorToPixel(info)
	}

	prevFb, prevAtts, prevRp, prevSubpass := st.Framebuffer, st.FramebufferAttachments, st.RenderPass, st.Subpass
	st.Framebuffer = newFb
	st.FramebufferAttachments = atts
	st.RenderPass = newRp
	st.Subpass = 0

	for f := uint32(0); f < frags; f++ {
		for _, pipe := range []gfxapi.ResourceID{pipes.primitiveID, pipes.shaderOut} {
			// Depth resets to the far plane so the isolated fragment's own
			// depth comes out of the counter attachment afterwards.
			cmd.ClearDepthStencilImage(p.info.counterImage, 1.0, 0)

			st.Pipeline = pipe
			p.ctrl.BeginRenderPassAndApplyState(cmd, replay.BindGraphics)
			cmd.SetStencilReference(f)
			cmd.Draw(p.ctrl.Draw(id))
			p.ctrl.EndRenderPass(cmd)

			offset := uint64(p.fragsProcessed+f) * fragmentInfoSize
			colorCopy := replay.PixelCopy{
				Source:       p.info.colorImage,
				SourceFormat: gfxapi.FormatR32G32B32A32Sfloat,
				SourceLayout: gfxapi.LayoutColorAttachment,
			}
			if pipe == pipes.primitiveID {
				p.copyPixel(cmd, colorCopy, offset+fragmentInfoPrimitive)
				continue
			}
			p.copyPixel(cmd, colorCopy, offset+fragmentInfoShaderOut)
			if info.DepthTest {
				p.copyPixel(cmd, replay.PixelCopy{
					Source:       p.info.counterImage,
					SourceFormat: gfxapi.FormatD32SfloatS8Uint,
					SourceLayout: gfxapi.LayoutDepthStencilAttachment,
					DepthCopy:    true,
				}, offset+fragmentInfoShaderOut+pixelValueDepth)
			}
		}
	}

	// Post-modification values replay against the original target. The last
	// fragment needs none; its value is the event's post-modification record.
	st.Framebuffer = prevFb
	st.FramebufferAttachments = prevAtts
	st.RenderPass = prevRp
	st.Subpass = prevSubpass
	st.Pipeline = pipes.postMod

	depthImage, depthFormat := p.drawDepthTarget(id)
	for f := uint32(0); f+1 < frags; f++ {
		p.ctrl.BeginRenderPassAndApplyState(cmd, replay.BindGraphics)
		cmd.ClearStencilAttachment(p.pixelRect(), 0)
		cmd.SetStencilReference(f)
		cmd.Draw(p.ctrl.Draw(id))
		p.ctrl.EndRenderPass(cmd)

		offset := uint64(p.fragsProcessed+f) * fragmentInfoSize
		layout := p.builder.ImageLayout(p.info.target, gfxapi.AspectColor, p.info.sub.Mip, p.info.sub.Slice)
		p.copyPixel(cmd, replay.PixelCopy{
			Source:       p.info.target,
			SourceFormat: p.info.targetFormat,
			SourceLayout: layout,
		}, offset+fragmentInfoPostMod)
		if !depthImage.IsNil() {
			p.copyPixel(cmd, replay.PixelCopy{
				Source:       depthImage,
				SourceFormat: depthFormat,
				SourceLayout: gfxapi.LayoutDepthStencilAttachment,
				DepthCopy:    true,
			}, offset+fragmentInfoPostMod+pixelValueDepth)
		}
	}

	p.eventOffsets[id] = p.fragsProcessed
	p.fragsProcessed += frags
	return nil
}

// equalIncrementStencil selects the fragment matching the dynamic reference:
// the compare passes once per reference value because every outcome
// increments.
func equalIncrementStencil() gfxapi.StencilOpState {
	return gfxapi.StencilOpState{
		FailOp:      gfxapi.StencilIncrementAndClamp,
		PassOp:      gfxapi.StencilIncrementAndClamp,
		DepthFailOp: gfxapi.StencilIncrementAndClamp,
		CompareOp:   gfxapi.CompareEqual,
		CompareMask: 0xff,
		WriteMask:   0xff,
		Reference:   0,
	}
}

func (p *perFragmentPass) createPipelines(ctx context.Context, id api.EventID, info *gfxapi.Pipeline, newRp gfxapi.ResourceID, fbIndex uint32) (fragmentPipelines, error) {
	var pipes fragmentPipelines

	// postMod keeps the original state apart from the fragment-selecting
	// stencil. Blending, depth writes and the original render pass stay in
	// play so the target shows the real intermediate value.
	post := info.Clone()
	post.StencilTest = true
	post.Front = equalIncrementStencil()
	post.Back = post.Front
	post.DynamicStencilReference = true
	if err := p.replaceSideEffectShaders(ctx, info, post, p.ctrl.StageSideEffects(id), false); err != nil {
		return pipes, err
	}
	var err error
	if pipes.postMod, err = p.builder.CreateGraphicsPipeline(ctx, post); err != nil {
		return pipes, err
	}
	p.pipesToDestroy = append(p.pipesToDestroy, pipes.postMod)

	// shaderOut renders into the substitute target with blending off, so
	// the raw shader output lands in the RGBA32F attachment.
	out := post.Clone()
	out.CullMode = gfxapi.CullNone
	out.RasterizerDiscard = false
	out.DepthBoundsTest = false
	if out.DepthTest {
		// Keep depth writes so the counter depth reflects this fragment,
		// but never reject it.
		out.DepthCompareOp = gfxapi.CompareAlways
	}
	out.RenderPass = newRp
	out.Subpass = 0
	for i := range out.Blends {
		if uint32(i) == fbIndex {
			out.Blends[i].BlendEnable = false
			out.Blends[i].WriteMask = gfxapi.ComponentsAll
		} else {
			out.Blends[i].WriteMask = 0
		}
	}
	p.scissorToPixel(out)
	if pipes.shaderOut, err = p.builder.CreateGraphicsPipeline(ctx, out); err != nil {
		return pipes, err
	}
	p.pipesToDestroy = append(p.pipesToDestroy, pipes.shaderOut)

	prim := out.Clone()
	prim.DepthTest = false
	prim.DepthWrite = false
	sh, err := p.shaders.primitiveIDShader(ctx, fbIndex)
	if err != nil {
		return pipes, err
	}
	prim.Shaders[gfxapi.StageFragment] = gfxapi.ShaderBinding{Module: sh, EntryPoint: "main"}
	if pipes.primitiveID, err = p.builder.CreateGraphicsPipeline(ctx, prim); err != nil {
		return pipes, err
	}
	p.pipesToDestroy = append(p.pipesToDestroy, pipes.primitiveID)
	return pipes, nil
}

// eventOffset returns the index of the event's first fragmentInfo record.
func (p *perFragmentPass) eventOffset(id api.EventID) (uint32, bool) {
	off, ok := p.eventOffsets[id]
	return off, ok
}

func (p *perFragmentPass) destroy(ctx context.Context) {
	for _, pipe := range p.pipesToDestroy {
		p.builder.Destroy(ctx, pipe)
	}
	p.callback.destroy(ctx)
}
