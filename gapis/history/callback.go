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

	"github.com/jpark37/renderdoc/gapis/api"
	"github.com/jpark37/renderdoc/gapis/gfxapi"
	"github.com/jpark37/renderdoc/gapis/replay"
)

// callbackInfo carries the target pixel's identity and the scratch resources
// shared by every pass of one invocation.
type callbackInfo struct {
	target       gfxapi.ResourceID
	targetFormat gfxapi.Format
	extent       gfxapi.Extent3D
	layers       uint32
	mips         uint32
	samples      uint32
	sub          api.Subresource
	x, y         uint32
	sampleMask   uint32

	// RGBA32F target for per-fragment data.
	colorImage gfxapi.ResourceID
	colorView  gfxapi.ResourceID

	// D32S8 target whose stencil acts as the fragment counter.
	counterImage gfxapi.ResourceID
	counterView  gfxapi.ResourceID

	// Staging for multisampled sources.
	stagingImage        gfxapi.ResourceID
	stencilStagingImage gfxapi.ResourceID

	// Host-visible readback buffer.
	readback     gfxapi.ResourceID
	readbackSize uint64
}

// callback is the state shared by the five pass hook implementations:
// derived render passes and framebuffers queued for destruction, and the
// first fatal error hit inside a hook. Hooks cannot return errors, so passes
// record the failure and go quiet; the orchestrator checks err after each
// replay.
type callback struct {
	ctrl    replay.Controller
	builder replay.Builder
	shaders *shaderCache
	info    *callbackInfo
	pool    gfxapi.ResourceID

	rps []gfxapi.ResourceID
	fbs []gfxapi.ResourceID

	err error
}

func (c *callback) fail(ctx context.Context, err error) {
	if c.err == nil {
		c.err = err
	}
	log.FromContext(ctx).Error("pixel history replay hook failed", "err", err)
}

func (c *callback) destroy(ctx context.Context) {
	for _, fb := range c.fbs {
		c.builder.Destroy(ctx, fb)
	}
	for _, rp := range c.rps {
		c.builder.Destroy(ctx, rp)
	}
	c.fbs, c.rps = nil, nil
}

// pixelRect is the 1x1 rectangle at the target pixel, used for attachment
// clears.
func (c *callback) pixelRect() gfxapi.Rect2D {
	return gfxapi.Rect2D{
		Offset: gfxapi.Offset2D{X: int32(c.info.x), Y: int32(c.info.y)},
		Extent: gfxapi.Extent2D{Width: 1, Height: 1},
	}
}

// allPassIncrementStencil is the stencil face state used to count fragments:
// always pass, increment and clamp on every outcome.
func allPassIncrementStencil() gfxapi.StencilOpState {
	return gfxapi.StencilOpState{
		FailOp:      gfxapi.StencilIncrementAndClamp,
		PassOp:      gfxapi.StencilIncrementAndClamp,
		DepthFailOp: gfxapi.StencilIncrementAndClamp,
		CompareOp:   gfxapi.CompareAlways,
		CompareMask: 0xff,
		WriteMask:   0xff,
		Reference:   0,
	}
}

// makeCounterPipeline clones the base pipeline description and rewrites it
// so that every test is disabled except an all-pass increment-and-clamp
// stencil, the scissor covers just the target pixel, and stages with side
// effects run their stripped shaders. The returned description still needs a
// render pass assigned and a pipeline built from it.
//
// Dynamically scissored pipelines are patched through the render state
// instead of the baked scissors.
func (c *callback) makeCounterPipeline(ctx context.Context, id api.EventID, base gfxapi.ResourceID) (*gfxapi.Pipeline, error) {
	p, err := c.builder.PipelineInfo(base)
	if err != nil {
		return nil, err
	}
	q := p.Clone()

	q.CullMode = gfxapi.CullNone
	q.RasterizerDiscard = false
	q.DepthTest = false
	q.DepthWrite = false
	q.DepthBoundsTest = false
	if c.ctrl.Features().DepthClamp {
		q.DepthClamp = true
	}

	q.StencilTest = true
	q.Front = allPassIncrementStencil()
	q.Back = q.Front

	q.SampleMask = c.info.sampleMask
	c.scissorToPixel(q)

	// The rewritten render pass always has a single subpass.
	q.Subpass = 0

	if err := c.replaceSideEffectShaders(ctx, p, q, c.ctrl.StageSideEffects(id), false); err != nil {
		return nil, err
	}
	return q, nil
}

// scissorToPixel restricts the pipeline's scissors to the target pixel,
// going through dynamic state when the pipeline declares it.
func (c *callback) scissorToPixel(q *gfxapi.Pipeline) {
	if q.DynamicScissor {
		st := c.ctrl.CmdRenderState()
		for i := range st.Scissors {
			if i < len(st.Viewports) {
				st.Scissors[i] = scissorToPixel(st.Viewports[i], c.info.x, c.info.y)
			}
		}
		return
	}
	for i := range q.Scissors {
		if i < len(q.Viewports) {
			q.Scissors[i] = scissorToPixel(q.Viewports[i], c.info.x, c.info.y)
		}
	}
}

// replaceSideEffectShaders swaps the stages named in stages (plus the
// fragment stage when withFragment is set) for their side-effect-free
// variants. Stages whose shaders had nothing to strip keep their original
// modules.
func (c *callback) replaceSideEffectShaders(ctx context.Context, p, q *gfxapi.Pipeline, stages gfxapi.StageFlags, withFragment bool) error {
	for s := gfxapi.ShaderStage(0); s < gfxapi.StageCount; s++ {
		if !p.Shaders[s].Bound() {
			continue
		}
		if !stages.Has(s) && !(withFragment && s == gfxapi.StageFragment) {
			continue
		}
		sh, err := c.shaders.sideEffectFreeShader(ctx, p.Shaders[s].Module, p.Shaders[s].EntryPoint)
		if err != nil {
			return err
		}
		if !sh.IsNil() {
			q.Shaders[s].Module = sh
		}
	}
	return nil
}

// createRenderPass derives a single-subpass render pass from subpass
// subpassIdx of rp: color and input attachments are kept, resolve
// attachments are dropped, and the depth-stencil attachment is substituted
// (or appended) with a D32S8 counter attachment. When subst is not nil, the
// attachment backed by that image additionally changes format to newFormat.
func (c *callback) createRenderPass(ctx context.Context, rp, fb gfxapi.ResourceID, subpassIdx uint32, subst gfxapi.ResourceID, newFormat gfxapi.Format) (gfxapi.ResourceID, error) {
	rpInfo, err := c.builder.RenderPassInfo(rp)
	if err != nil {
		return gfxapi.NilResource, err
	}
	sub := rpInfo.Subpasses[subpassIdx]

	newSub := gfxapi.Subpass{
		Colors: append([]gfxapi.AttachmentReference(nil), sub.Colors...),
		Inputs: append([]gfxapi.AttachmentReference(nil), sub.Inputs...),
	}

	// A single draw is replayed against this pass, so everything loads and
	// stores; the counter stencil clears on load instead.
	descs := make([]gfxapi.AttachmentDescription, len(rpInfo.Attachments))
	for i, a := range rpInfo.Attachments {
		descs[i] = gfxapi.AttachmentDescription{
			Format:         a.Format,
			Samples:        a.Samples,
			LoadOp:         gfxapi.LoadOpLoad,
			StoreOp:        gfxapi.StoreOpStore,
			StencilLoadOp:  gfxapi.LoadOpDontCare,
			StencilStoreOp: gfxapi.StoreOpDontCare,
			InitialLayout:  a.InitialLayout,
			FinalLayout:    a.FinalLayout,
		}
	}
	// Attachments the kept subpass references get their layout pinned so no
	// transition happens across the pass.
	for _, refs := range [][]gfxapi.AttachmentReference{newSub.Colors, newSub.Inputs} {
		for _, ref := range refs {
			if ref.Attachment != gfxapi.AttachmentUnused {
				descs[ref.Attachment].InitialLayout = ref.Layout
				descs[ref.Attachment].FinalLayout = ref.Layout
			}
		}
	}

	counter := gfxapi.AttachmentDescription{
		Format:         gfxapi.FormatD32SfloatS8Uint,
		Samples:        c.info.samples,
		LoadOp:         gfxapi.LoadOpDontCare,
		StoreOp:        gfxapi.StoreOpDontCare,
		StencilLoadOp:  gfxapi.LoadOpClear,
		StencilStoreOp: gfxapi.StoreOpStore,
		InitialLayout:  gfxapi.LayoutDepthStencilAttachment,
		FinalLayout:    gfxapi.LayoutDepthStencilAttachment,
	}
	dsRef := gfxapi.AttachmentReference{Layout: gfxapi.LayoutDepthStencilAttachment}
	if sub.DepthStencil.Attachment != gfxapi.AttachmentUnused {
		descs[sub.DepthStencil.Attachment] = counter
		dsRef.Attachment = sub.DepthStencil.Attachment
	} else {
		dsRef.Attachment = int32(len(descs))
		descs = append(descs, counter)
	}
	newSub.DepthStencil = dsRef

	if !subst.IsNil() {
		fbInfo, err := c.builder.FramebufferInfo(fb)
		if err != nil {
			return gfxapi.NilResource, err
		}
		for i, att := range fbInfo.Attachments {
			view, err := c.builder.ImageViewInfo(att)
			if err != nil {
				return gfxapi.NilResource, err
			}
			if view.Image == subst {
				descs[i].Format = newFormat
			}
		}
	}

	id, err := c.builder.CreateRenderPass(ctx, &gfxapi.RenderPass{
		Attachments: descs,
		Subpasses:   []gfxapi.Subpass{newSub},
	})
	if err != nil {
		return gfxapi.NilResource, err
	}
	c.rps = append(c.rps, id)
	return id, nil
}

// createFramebuffer mirrors createRenderPass at the image view level:
// the original framebuffer's views are kept, the depth-stencil slot becomes
// dsView (appended when the subpass had none), and when newView is not nil
// the view over the target image is replaced with it. Returns the new
// framebuffer and its attachment list.
func (c *callback) createFramebuffer(ctx context.Context, rp gfxapi.ResourceID, newRp gfxapi.ResourceID, subpassIdx uint32, fb gfxapi.ResourceID, dsView, newView gfxapi.ResourceID) (gfxapi.ResourceID, []gfxapi.ResourceID, error) {
	rpInfo, err := c.builder.RenderPassInfo(rp)
	if err != nil {
		return gfxapi.NilResource, nil, err
	}
	sub := rpInfo.Subpasses[subpassIdx]
	fbInfo, err := c.builder.FramebufferInfo(fb)
	if err != nil {
		return gfxapi.NilResource, nil, err
	}

	atts := append([]gfxapi.ResourceID(nil), fbInfo.Attachments...)
	if !newView.IsNil() {
		for i, att := range atts {
			view, err := c.builder.ImageViewInfo(att)
			if err != nil {
				return gfxapi.NilResource, nil, err
			}
			if view.Image == c.info.target {
				atts[i] = newView
			}
		}
	}
	if sub.DepthStencil.Attachment != gfxapi.AttachmentUnused {
		atts[sub.DepthStencil.Attachment] = dsView
	} else {
		atts = append(atts, dsView)
	}

	id, err := c.builder.CreateFramebuffer(ctx, newRp, &gfxapi.Framebuffer{
		Attachments: atts,
		Width:       fbInfo.Width,
		Height:      fbInfo.Height,
		Layers:      fbInfo.Layers,
	})
	if err != nil {
		return gfxapi.NilResource, nil, err
	}
	c.fbs = append(c.fbs, id)
	return id, atts, nil
}

// framebufferIndex finds the color attachment slot whose view is over the
// target image. Defaults to 0 when the target is not attached.
func (c *callback) framebufferIndex(atts []gfxapi.ResourceID) uint32 {
	for i, att := range atts {
		view, err := c.builder.ImageViewInfo(att)
		if err == nil && view.Image == c.info.target {
			return uint32(i)
		}
	}
	return 0
}

// copyPixel fills in the pixel coordinates, readback destination and
// multisample staging of p and records the copy. Depth copies of
// multisampled sources are skipped; resolving depth samples is unsupported.
func (c *callback) copyPixel(cmd replay.CommandBuffer, p replay.PixelCopy, offset uint64) {
	if p.DepthCopy && c.info.samples > 1 {
		return
	}
	p.X, p.Y = c.info.x, c.info.y
	p.Sub = c.info.sub
	p.Buffer = c.info.readback
	p.Offset = offset
	if c.info.samples > 1 {
		p.Staging = c.info.stagingImage
		p.StencilStaging = c.info.stencilStagingImage
	}
	cmd.CopyPixel(p)
}

// copyTargetValue copies the target's color texel, and the current depth
// value when the event writes a depth attachment, into a pixelValue record
// at offset.
func (c *callback) copyTargetValue(cmd replay.CommandBuffer, depthImage gfxapi.ResourceID, depthFormat gfxapi.Format, offset uint64) {
	layout := c.builder.ImageLayout(c.info.target, gfxapi.AspectColor, c.info.sub.Mip, c.info.sub.Slice)
	c.copyPixel(cmd, replay.PixelCopy{
		Source:       c.info.target,
		SourceFormat: c.info.targetFormat,
		SourceLayout: layout,
	}, offset)

	if !depthImage.IsNil() {
		c.copyPixel(cmd, replay.PixelCopy{
			Source:       depthImage,
			SourceFormat: depthFormat,
			SourceLayout: gfxapi.LayoutDepthStencilAttachment,
			DepthCopy:    true,
		}, offset+pixelValueDepth)
	}
}

// drawDepthTarget resolves the depth image a draw writes, if any.
func (c *callback) drawDepthTarget(id api.EventID) (gfxapi.ResourceID, gfxapi.Format) {
	draw := c.ctrl.Draw(id)
	if draw == nil || draw.DepthOut.IsNil() {
		return gfxapi.NilResource, gfxapi.FormatUndefined
	}
	info, err := c.builder.ImageInfo(draw.DepthOut)
	if err != nil {
		return gfxapi.NilResource, gfxapi.FormatUndefined
	}
	return draw.DepthOut, info.Format
}

// counterStencilCopy describes a copy of the counter target's stencil byte.
func (c *callback) counterStencilCopy() replay.PixelCopy {
	return replay.PixelCopy{
		Source:       c.info.counterImage,
		SourceFormat: gfxapi.FormatD32SfloatS8Uint,
		SourceLayout: gfxapi.LayoutDepthStencilAttachment,
		DepthCopy:    true,
		StencilOnly:  true,
	}
}
