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
	"encoding/binary"
	"math"

	"github.com/jpark37/renderdoc/gapis/api"
	"github.com/jpark37/renderdoc/gapis/gfxapi"
	"github.com/jpark37/renderdoc/gapis/replay"
	"github.com/jpark37/renderdoc/gapis/shadertools"
)

// The fake device models a single pixel. Events are scripted with the
// fragments that cover the pixel and the test outcomes that cannot be
// derived from pipeline state; the device evaluates replayed draws against
// the bound pipeline description the same way hardware would, so the passes
// exercise their real pipeline rewrites.

type fakeFrag struct {
	prim      int32
	color     [4]float32
	depth     float32
	discarded bool
}

type fakeEvent struct {
	usage    api.Usage
	draw     *api.Draw
	pipeline gfxapi.ResourceID

	// frags cover the pixel when rasterized with tests off, in order.
	frags []fakeFrag

	// Dynamic test outcomes the device cannot derive from state.
	failDepth       bool
	failStencil     bool
	failDepthBounds bool

	// final is the target color a clear or direct write leaves behind.
	final [4]float32
}

type fakeDevice struct {
	events map[api.EventID]*fakeEvent
	order  []api.EventID

	pipelines map[gfxapi.ResourceID]*gfxapi.Pipeline
	rps       map[gfxapi.ResourceID]*gfxapi.RenderPass
	fbs       map[gfxapi.ResourceID]*gfxapi.Framebuffer
	views     map[gfxapi.ResourceID]*gfxapi.ImageView
	images    map[gfxapi.ResourceID]*gfxapi.Image
	buffers   map[gfxapi.ResourceID][]byte
	pools     map[gfxapi.ResourceID][]uint64
	editors   map[gfxapi.ResourceID]shadertools.Editor

	poolSizes      []uint32
	createdModules int
	destroyed      map[gfxapi.ResourceID]bool

	target     gfxapi.ResourceID
	targetView gfxapi.ResourceID
	baseRP     gfxapi.ResourceID
	baseFB     gfxapi.ResourceID
	basePipe   gfxapi.ResourceID
	fsModule   gfxapi.ResourceID

	builtins map[[2]uint32]gfxapi.ResourceID

	colorImage   gfxapi.ResourceID
	counterImage gfxapi.ResourceID

	features gfxapi.Features

	state   *replay.RenderState
	hooks   replay.EventHooks
	current api.EventID

	initColor      [4]float32
	targetColor    [4]float32
	targetDepth    float32
	counterStencil int32
	counterDepth   float32
	colorRaw       [16]byte

	pendingPool  gfxapi.ResourceID
	pendingQuery uint32
	hasPending   bool
	lastSamples  uint64
}

func newFakeDevice() *fakeDevice {
	d := &fakeDevice{
		events:    map[api.EventID]*fakeEvent{},
		pipelines: map[gfxapi.ResourceID]*gfxapi.Pipeline{},
		rps:       map[gfxapi.ResourceID]*gfxapi.RenderPass{},
		fbs:       map[gfxapi.ResourceID]*gfxapi.Framebuffer{},
		views:     map[gfxapi.ResourceID]*gfxapi.ImageView{},
		images:    map[gfxapi.ResourceID]*gfxapi.Image{},
		buffers:   map[gfxapi.ResourceID][]byte{},
		pools:     map[gfxapi.ResourceID][]uint64{},
		editors:   map[gfxapi.ResourceID]shadertools.Editor{},
		builtins:  map[[2]uint32]gfxapi.ResourceID{},
		destroyed: map[gfxapi.ResourceID]bool{},
		state:     &replay.RenderState{},
		initColor: [4]float32{0, 0, 0, 1},
		features: gfxapi.Features{
			PixelHistory:     true,
			OcclusionQueries: true,
			DepthClamp:       true,
			IndependentBlend: true,
		},
	}

	d.target = gfxapi.NewResourceID()
	d.images[d.target] = &gfxapi.Image{
		Format:  gfxapi.FormatR8G8B8A8Unorm,
		Extent:  gfxapi.Extent3D{Width: 64, Height: 64, Depth: 1},
		Samples: 1,
		Layers:  1,
		Mips:    1,
	}
	d.targetView = gfxapi.NewResourceID()
	d.views[d.targetView] = &gfxapi.ImageView{Image: d.target, Format: gfxapi.FormatR8G8B8A8Unorm}

	d.baseRP = gfxapi.NewResourceID()
	d.rps[d.baseRP] = &gfxapi.RenderPass{
		Attachments: []gfxapi.AttachmentDescription{{
			Format:        gfxapi.FormatR8G8B8A8Unorm,
			Samples:       1,
			InitialLayout: gfxapi.LayoutColorAttachment,
			FinalLayout:   gfxapi.LayoutColorAttachment,
		}},
		Subpasses: []gfxapi.Subpass{{
			Colors:       []gfxapi.AttachmentReference{{Attachment: 0, Layout: gfxapi.LayoutColorAttachment}},
			DepthStencil: gfxapi.AttachmentReference{Attachment: gfxapi.AttachmentUnused},
		}},
	}
	d.baseFB = gfxapi.NewResourceID()
	d.fbs[d.baseFB] = &gfxapi.Framebuffer{
		Attachments: []gfxapi.ResourceID{d.targetView},
		Width:       64, Height: 64, Layers: 1,
	}

	d.fsModule = gfxapi.NewResourceID()
	d.basePipe = d.registerPipeline(d.defaultPipeline())
	return d
}

func (d *fakeDevice) defaultPipeline() *gfxapi.Pipeline {
	p := &gfxapi.Pipeline{
		Topology:    gfxapi.TopologyTriangleList,
		Viewports:   []gfxapi.Viewport{{X: 0, Y: 0, Width: 64, Height: 64, MaxDepth: 1}},
		Scissors:    []gfxapi.Rect2D{rect(0, 0, 64, 64)},
		SampleCount: 1,
		SampleMask:  ^uint32(0),
		Blends:      []gfxapi.ColorBlendAttachment{{WriteMask: gfxapi.ComponentsAll}},
		RenderPass:  d.baseRP,
	}
	p.Shaders[gfxapi.StageVertex] = gfxapi.ShaderBinding{Module: gfxapi.NewResourceID(), EntryPoint: "main"}
	p.Shaders[gfxapi.StageFragment] = gfxapi.ShaderBinding{Module: d.fsModule, EntryPoint: "main"}
	return p
}

func (d *fakeDevice) registerPipeline(p *gfxapi.Pipeline) gfxapi.ResourceID {
	id := gfxapi.NewResourceID()
	d.pipelines[id] = p
	return id
}

func (d *fakeDevice) addDraw(id api.EventID, ev *fakeEvent) *fakeEvent {
	if ev.usage == api.UsageUnknown {
		ev.usage = api.UsageColorTarget
	}
	if ev.draw == nil {
		ev.draw = &api.Draw{
			Elements:  9,
			Instances: 1,
			Topology:  gfxapi.TopologyTriangleList,
		}
	}
	if ev.pipeline.IsNil() {
		ev.pipeline = d.basePipe
	}
	d.events[id] = ev
	d.order = append(d.order, id)
	return ev
}

func (d *fakeDevice) addClear(id api.EventID, color [4]float32) {
	d.events[id] = &fakeEvent{usage: api.UsageClear, final: color}
	d.order = append(d.order, id)
}

// addTransfer scripts a copy or resolve. final only takes effect when the
// usage writes the target.
func (d *fakeDevice) addTransfer(id api.EventID, u api.Usage, final [4]float32) {
	d.events[id] = &fakeEvent{usage: u, final: final}
	d.order = append(d.order, id)
}

func (d *fakeDevice) usages() []api.EventUsage {
	out := make([]api.EventUsage, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, api.EventUsage{Event: id, Usage: d.events[id].usage})
	}
	return out
}

func (d *fakeDevice) survivors(ev *fakeEvent) []fakeFrag {
	var out []fakeFrag
	for _, f := range ev.frags {
		if !f.discarded {
			out = append(out, f)
		}
	}
	return out
}

// samples evaluates how many of the event's fragments a draw under pipeline
// q produces at the pixel, honoring the state rewrites the passes apply.
func (d *fakeDevice) samples(q *gfxapi.Pipeline, ev *fakeEvent, dr *api.Draw) uint64 {
	if q == nil || len(ev.frags) == 0 || q.RasterizerDiscard {
		return 0
	}
	if q.CullMode == gfxapi.CullFrontAndBack {
		return 0
	}
	scissors := q.Scissors
	if q.DynamicScissor {
		scissors = d.state.Scissors
	}
	for _, s := range scissors {
		// The single-viewport fakes treat every scissor as clipping.
		if 5 < s.Offset.X || 5 >= s.Offset.X+int32(s.Extent.Width) ||
			5 < s.Offset.Y || 5 >= s.Offset.Y+int32(s.Extent.Height) {
			return 0
		}
	}
	if q.DepthBoundsTest && ev.failDepthBounds {
		return 0
	}
	counterStencil := q.StencilTest && q.Front.CompareOp == gfxapi.CompareAlways &&
		q.Front.PassOp == gfxapi.StencilIncrementAndClamp
	if q.StencilTest && !counterStencil && q.Front.CompareOp != gfxapi.CompareEqual && ev.failStencil {
		return 0
	}
	if q.DepthTest && q.DepthCompareOp != gfxapi.CompareAlways && ev.failDepth {
		return 0
	}

	frags := ev.frags
	if ev.draw != nil && dr != nil && dr != ev.draw &&
		dr.Elements == dr.Topology.VerticesPerPrimitive() {
		// Narrowed to a single primitive.
		prim := int32(dr.VertexOffset-ev.draw.VertexOffset) / int32(dr.Topology.VerticesPerPrimitive())
		frags = nil
		for _, f := range ev.frags {
			if f.prim == prim {
				frags = append(frags, f)
			}
		}
	}
	discardApplies := q.Shaders[gfxapi.StageFragment].Module == d.fsModule
	n := uint64(0)
	for _, f := range frags {
		if !f.discarded || !discardApplies {
			n++
		}
	}
	return n
}

// --- Controller ---

type fakeController struct{ *fakeDevice }

func (c fakeController) SetEventHooks(h replay.EventHooks) { c.hooks = h }

func (c fakeController) ReplayRange(ctx context.Context, from, to api.EventID) error {
	d := c.fakeDevice
	d.targetColor = d.initColor
	d.targetDepth = 0
	for _, id := range d.order {
		if id < from || id > to {
			continue
		}
		ev := d.events[id]
		d.current = id
		cmd := fakeCmd{d}
		switch {
		case ev.usage == api.UsageClear:
			if d.hooks != nil {
				d.hooks.PreMisc(ctx, id, api.DrawClear, cmd)
			}
			d.targetColor = ev.final
			if d.hooks != nil {
				d.hooks.PostMisc(ctx, id, api.DrawClear, cmd)
			}
		case ev.usage.DirectWrite():
			if d.hooks != nil {
				d.hooks.PreDispatch(ctx, id, cmd)
			}
			d.targetColor = ev.final
			if d.hooks != nil {
				d.hooks.PostDispatch(ctx, id, cmd)
			}
		case ev.usage == api.UsageCopySrc || ev.usage == api.UsageResolveSrc ||
			ev.usage == api.UsageBarrier:
			// Reads and barriers leave the target untouched.
			if d.hooks != nil {
				d.hooks.PreMisc(ctx, id, 0, cmd)
				d.hooks.PostMisc(ctx, id, 0, cmd)
			}
		default:
			p := d.pipelines[ev.pipeline]
			d.state.Assign(&replay.RenderState{
				Pipeline:               ev.pipeline,
				RenderPass:             d.baseRP,
				Framebuffer:            d.baseFB,
				FramebufferAttachments: []gfxapi.ResourceID{d.targetView},
				Viewports:              p.Viewports,
				Scissors:               p.Scissors,
			})
			if d.hooks != nil {
				d.hooks.PreDraw(ctx, id, cmd)
			}
			if d.samples(p, ev, ev.draw) > 0 {
				for _, f := range d.survivors(ev) {
					d.targetColor = f.color
					d.targetDepth = f.depth
				}
			}
			if d.hooks != nil {
				d.hooks.PostDraw(ctx, id, cmd)
			}
		}
	}
	return nil
}

func (c fakeController) SubmitAndWait(ctx context.Context) error { return nil }
func (c fakeController) CmdRenderState() *replay.RenderState     { return c.state }
func (c fakeController) IsPrimaryCmd() bool                      { return true }

func (c fakeController) Draw(id api.EventID) *api.Draw {
	if ev, ok := c.events[id]; ok {
		return ev.draw
	}
	return nil
}

func (c fakeController) StageSideEffects(id api.EventID) gfxapi.StageFlags { return 0 }

func (c fakeController) Features() gfxapi.Features { return c.features }

func (c fakeController) EndRenderPass(cmd replay.CommandBuffer) {}
func (c fakeController) BeginRenderPassAndApplyState(cmd replay.CommandBuffer, bind replay.Bind) {
}
func (c fakeController) BindPipeline(cmd replay.CommandBuffer, bind replay.Bind, subpassZero bool) {
}

// --- CommandBuffer ---

type fakeCmd struct{ *fakeDevice }

func (c fakeCmd) BeginQuery(pool gfxapi.ResourceID, query uint32) {
	c.pendingPool, c.pendingQuery, c.hasPending = pool, query, true
	c.lastSamples = 0
}

func (c fakeCmd) EndQuery(pool gfxapi.ResourceID, query uint32) {
	d := c.fakeDevice
	results := d.pools[pool]
	for uint32(len(results)) <= query {
		results = append(results, 0)
	}
	results[query] = d.lastSamples
	d.pools[pool] = results
	d.hasPending = false
}

func (c fakeCmd) Draw(dr *api.Draw) {
	d := c.fakeDevice
	ev := d.events[d.current]
	q := d.pipelines[d.state.Pipeline]
	if q == nil || ev == nil {
		return
	}
	n := d.samples(q, ev, dr)
	d.lastSamples = n

	counterStencil := q.StencilTest && q.Front.CompareOp == gfxapi.CompareAlways &&
		q.Front.PassOp == gfxapi.StencilIncrementAndClamp
	if counterStencil {
		d.counterStencil += int32(n)
		return
	}

	if q.StencilTest && q.Front.CompareOp == gfxapi.CompareEqual {
		f := d.state.StencilRef
		fs := q.Shaders[gfxapi.StageFragment].Module
		if _, builtin := d.builtinKind(fs); builtin == shadertools.BuiltinPrimitiveID {
			if f < uint32(len(ev.frags)) {
				binary.LittleEndian.PutUint32(d.colorRaw[:], uint32(ev.frags[f].prim))
			}
			return
		}
		survivors := d.survivors(ev)
		if f >= uint32(len(survivors)) {
			return
		}
		s := survivors[f]
		if q.RenderPass != d.baseRP {
			// Shader output into the substitute RGBA32F target.
			for i, v := range s.color {
				binary.LittleEndian.PutUint32(d.colorRaw[i*4:], math.Float32bits(v))
			}
			d.counterDepth = s.depth
		} else {
			// Post-modification replay against the real target.
			d.targetColor = s.color
			d.targetDepth = s.depth
		}
	}
}

func (c fakeCmd) ClearStencilAttachment(rect gfxapi.Rect2D, value uint32) {
	c.counterStencil = int32(value)
}

func (c fakeCmd) ClearDepthStencilImage(img gfxapi.ResourceID, depth float32, stencil uint32) {
	if img == c.counterImage {
		c.counterDepth = depth
		c.counterStencil = int32(stencil)
	}
}

func (c fakeCmd) SetStencilReference(ref uint32) { c.state.StencilRef = ref }

func (c fakeCmd) SetScissors(rects []gfxapi.Rect2D) { c.state.Scissors = rects }

func (c fakeCmd) CopyPixel(p replay.PixelCopy) {
	d := c.fakeDevice
	buf := d.buffers[p.Buffer]
	switch {
	case p.StencilOnly:
		buf[p.Offset] = byte(d.counterStencil)
	case p.DepthCopy:
		v := d.targetDepth
		if p.Source == d.counterImage {
			v = d.counterDepth
		}
		binary.LittleEndian.PutUint32(buf[p.Offset:], math.Float32bits(v))
	case p.Source == d.colorImage:
		copy(buf[p.Offset:], d.colorRaw[:])
	default:
		for i, v := range d.targetColor {
			buf[p.Offset+uint64(i)] = byte(v*255 + 0.5)
		}
	}
}

// --- Builder ---

type fakeBuilder struct{ *fakeDevice }

func (b fakeBuilder) CreateShaderModule(ctx context.Context, code []uint32) (gfxapi.ResourceID, error) {
	b.createdModules++
	return gfxapi.NewResourceID(), nil
}

func (b fakeBuilder) CreateGraphicsPipeline(ctx context.Context, p *gfxapi.Pipeline) (gfxapi.ResourceID, error) {
	return b.registerPipeline(p.Clone()), nil
}

func (b fakeBuilder) CreateRenderPass(ctx context.Context, rp *gfxapi.RenderPass) (gfxapi.ResourceID, error) {
	id := gfxapi.NewResourceID()
	b.rps[id] = rp
	return id, nil
}

func (b fakeBuilder) CreateFramebuffer(ctx context.Context, rp gfxapi.ResourceID, fb *gfxapi.Framebuffer) (gfxapi.ResourceID, error) {
	id := gfxapi.NewResourceID()
	b.fbs[id] = fb
	return id, nil
}

func (b fakeBuilder) CreateImage(ctx context.Context, im *gfxapi.Image, usage gfxapi.ImageUsage) (gfxapi.ResourceID, error) {
	id := gfxapi.NewResourceID()
	b.images[id] = im
	if im.Format == gfxapi.FormatR32G32B32A32Sfloat && usage&gfxapi.UsageColorAttachment != 0 {
		b.colorImage = id
	}
	if im.Format == gfxapi.FormatD32SfloatS8Uint && usage&gfxapi.UsageDepthStencilAttachment != 0 {
		b.counterImage = id
	}
	return id, nil
}

func (b fakeBuilder) CreateImageView(ctx context.Context, v *gfxapi.ImageView) (gfxapi.ResourceID, error) {
	id := gfxapi.NewResourceID()
	b.views[id] = v
	return id, nil
}

func (b fakeBuilder) CreateBuffer(ctx context.Context, size uint64) (gfxapi.ResourceID, error) {
	id := gfxapi.NewResourceID()
	b.buffers[id] = make([]byte, size)
	return id, nil
}

func (b fakeBuilder) CreateQueryPool(ctx context.Context, count uint32) (gfxapi.ResourceID, error) {
	id := gfxapi.NewResourceID()
	b.pools[id] = make([]uint64, 0, count)
	b.poolSizes = append(b.poolSizes, count)
	return id, nil
}

func (b fakeBuilder) Destroy(ctx context.Context, id gfxapi.ResourceID) {
	if !id.IsNil() {
		b.destroyed[id] = true
	}
}

func (b fakeBuilder) FetchQueryResults(ctx context.Context, pool gfxapi.ResourceID, count uint32) ([]uint64, error) {
	results := b.pools[pool]
	for uint32(len(results)) < count {
		results = append(results, 0)
	}
	b.pools[pool] = results
	return results[:count], nil
}

func (b fakeBuilder) MapBuffer(ctx context.Context, buf gfxapi.ResourceID) ([]byte, error) {
	return b.buffers[buf], nil
}

func (b fakeBuilder) UnmapBuffer(ctx context.Context, buf gfxapi.ResourceID) {}

func (b fakeBuilder) PipelineInfo(id gfxapi.ResourceID) (*gfxapi.Pipeline, error) {
	if p, ok := b.pipelines[id]; ok {
		return p, nil
	}
	return nil, replay.ErrUnknownResource
}

func (b fakeBuilder) RenderPassInfo(id gfxapi.ResourceID) (*gfxapi.RenderPass, error) {
	if rp, ok := b.rps[id]; ok {
		return rp, nil
	}
	return nil, replay.ErrUnknownResource
}

func (b fakeBuilder) FramebufferInfo(id gfxapi.ResourceID) (*gfxapi.Framebuffer, error) {
	if fb, ok := b.fbs[id]; ok {
		return fb, nil
	}
	return nil, replay.ErrUnknownResource
}

func (b fakeBuilder) ImageViewInfo(id gfxapi.ResourceID) (*gfxapi.ImageView, error) {
	if v, ok := b.views[id]; ok {
		return v, nil
	}
	return nil, replay.ErrUnknownResource
}

func (b fakeBuilder) ImageInfo(id gfxapi.ResourceID) (*gfxapi.Image, error) {
	if im, ok := b.images[id]; ok {
		return im, nil
	}
	return nil, replay.ErrUnknownResource
}

func (b fakeBuilder) ImageLayout(img gfxapi.ResourceID, aspect gfxapi.ImageAspect, mip, slice uint32) gfxapi.ImageLayout {
	return gfxapi.LayoutColorAttachment
}

func (b fakeBuilder) OpenShaderEditor(ctx context.Context, shader gfxapi.ResourceID) (shadertools.Editor, error) {
	if ed, ok := b.editors[shader]; ok {
		return ed, nil
	}
	return &fakeEditor{entryPoints: []shadertools.EntryPoint{{Name: "main", Function: 1}}}, nil
}

func (b fakeBuilder) BuiltinShader(ctx context.Context, kind shadertools.Builtin, slot uint32) (gfxapi.ResourceID, error) {
	key := [2]uint32{uint32(kind), slot}
	if id, ok := b.builtins[key]; ok {
		return id, nil
	}
	id := gfxapi.NewResourceID()
	b.builtins[key] = id
	return id, nil
}

// builtinKind reports whether the module is one of the backend's synthetic
// shaders, and which.
func (d *fakeDevice) builtinKind(id gfxapi.ResourceID) (uint32, shadertools.Builtin) {
	for key, v := range d.builtins {
		if v == id {
			return key[1], shadertools.Builtin(key[0])
		}
	}
	return 0, shadertools.Builtin(-1)
}

// --- Shader editor ---

type fakeEditor struct {
	entryPoints []shadertools.EntryPoint
	functions   map[shadertools.FuncID][]shadertools.Instr
	classes     map[shadertools.ID]shadertools.StorageClass

	removed  []shadertools.InstrID
	inserted []shadertools.Instr
}

func (e *fakeEditor) EntryPoints() []shadertools.EntryPoint { return e.entryPoints }

func (e *fakeEditor) Instructions(f shadertools.FuncID) []shadertools.Instr {
	return e.functions[f]
}

func (e *fakeEditor) PointerStorageClass(p shadertools.ID) shadertools.StorageClass {
	return e.classes[p]
}

func (e *fakeEditor) Remove(i shadertools.InstrID) { e.removed = append(e.removed, i) }

func (e *fakeEditor) InsertAtomicLoad(at shadertools.InstrID, resultType, result, pointer, scope, semantics shadertools.ID) {
	e.inserted = append(e.inserted, shadertools.Instr{
		ID:         at,
		ResultType: resultType,
		Result:     result,
		Pointer:    pointer,
		Scope:      scope,
		Semantics:  semantics,
	})
}

func (e *fakeEditor) Bytecode() []uint32 { return []uint32{0x07230203} }
