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

// Package replay defines the surface a replay backend exposes to analysis
// passes. The backend owns the GPU; analysis code drives it through the
// Controller, Builder and CommandBuffer interfaces and never touches device
// handles directly.
package replay

import (
	"context"

	"github.com/jpark37/renderdoc/core/fault"
	"github.com/jpark37/renderdoc/gapis/api"
	"github.com/jpark37/renderdoc/gapis/gfxapi"
)

// ErrReplayFailed is returned when the backend could not re-execute the
// requested event range.
const ErrReplayFailed = fault.Const("replay failed")

// Bind selects which pipeline state a rebind applies.
type Bind int

const (
	// BindNone restores no pipeline binding.
	BindNone Bind = iota
	// BindGraphics rebinds the render state's graphics pipeline and its
	// dynamic state.
	BindGraphics
)

// CommandBuffer records GPU work interposed around a replayed event. It is
// only valid inside the hook invocation that received it.
type CommandBuffer interface {
	// BeginQuery and EndQuery bracket an occlusion query.
	BeginQuery(pool gfxapi.ResourceID, query uint32)
	EndQuery(pool gfxapi.ResourceID, query uint32)

	// Draw records a draw with the given parameters using the currently
	// bound pipeline and render state.
	Draw(d *api.Draw)

	// ClearStencilAttachment clears the stencil aspect of the bound
	// depth-stencil attachment over rect.
	ClearStencilAttachment(rect gfxapi.Rect2D, value uint32)

	// ClearDepthStencilImage clears an image outside a render pass. The
	// image must be in LayoutTransferDst.
	ClearDepthStencilImage(img gfxapi.ResourceID, depth float32, stencil uint32)

	// SetStencilReference sets the dynamic stencil reference for both
	// faces.
	SetStencilReference(ref uint32)

	// SetScissors sets the dynamic scissor rectangles.
	SetScissors(rects []gfxapi.Rect2D)

	// CopyPixel records the image-to-buffer copy described by p, inserting
	// the layout transitions it needs around the copy.
	CopyPixel(p PixelCopy)
}

// Controller re-executes a captured command stream. A Controller is not safe
// for concurrent use; one analysis drives it at a time.
type Controller interface {
	// SetEventHooks installs the hooks invoked around each replayed event.
	// Passing nil uninstalls them.
	SetEventHooks(h EventHooks)

	// ReplayRange re-records and executes events [from, to], invoking the
	// installed hooks. It returns once the work is submitted.
	ReplayRange(ctx context.Context, from, to api.EventID) error

	// SubmitAndWait flushes outstanding work and blocks until the device
	// is idle.
	SubmitAndWait(ctx context.Context) error

	// CmdRenderState returns the render state the next replayed event will
	// be recorded with. Hooks may mutate it; mutations persist until
	// overwritten, so hooks restore what they change.
	CmdRenderState() *RenderState

	// IsPrimaryCmd reports whether the event currently being replayed was
	// recorded into a primary command buffer.
	IsPrimaryCmd() bool

	// Draw returns the recorded parameters of a draw event, or nil when
	// the event is not a draw.
	Draw(id api.EventID) *api.Draw

	// StageSideEffects reports which shader stages of the event's pipeline
	// write resources outside the framebuffer.
	StageSideEffects(id api.EventID) gfxapi.StageFlags

	// Features reports the replay device's optional capability.
	Features() gfxapi.Features

	// EndRenderPass suspends the render pass the current event is inside,
	// so work can be recorded outside it. The recorded pass state is
	// retained for BeginRenderPassAndApplyState.
	EndRenderPass(cmd CommandBuffer)

	// BeginRenderPassAndApplyState resumes the suspended render pass at
	// the current subpass with load-everything semantics, then rebinds
	// pipeline, descriptors and dynamic state per bind.
	BeginRenderPassAndApplyState(cmd CommandBuffer, bind Bind)

	// BindPipeline rebinds the selected pipeline and its dynamic state.
	// When subpassZero is set the render state's pipeline was created
	// against subpass 0 of a substitute pass and is bound as such.
	BindPipeline(cmd CommandBuffer, bind Bind, subpassZero bool)
}
