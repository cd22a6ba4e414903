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

package replay

import (
	"context"

	"github.com/jpark37/renderdoc/core/fault"
	"github.com/jpark37/renderdoc/gapis/gfxapi"
	"github.com/jpark37/renderdoc/gapis/shadertools"
)

// ErrUnknownResource is returned by registry lookups for ids the backend has
// not registered.
const ErrUnknownResource = fault.Const("unknown resource id")

// Builder creates and destroys replay-owned GPU resources and answers
// queries about resources the capture recorded. Creation calls return the id
// of the new resource; everything created through a Builder must be released
// through Destroy.
type Builder interface {
	// CreateShaderModule builds a shader module from bytecode words.
	CreateShaderModule(ctx context.Context, code []uint32) (gfxapi.ResourceID, error)

	// CreateGraphicsPipeline builds a pipeline from the description. The
	// description's RenderPass must name a live render pass.
	CreateGraphicsPipeline(ctx context.Context, p *gfxapi.Pipeline) (gfxapi.ResourceID, error)

	// CreateRenderPass builds a render pass from the description.
	CreateRenderPass(ctx context.Context, rp *gfxapi.RenderPass) (gfxapi.ResourceID, error)

	// CreateFramebuffer builds a framebuffer compatible with rp.
	CreateFramebuffer(ctx context.Context, rp gfxapi.ResourceID, fb *gfxapi.Framebuffer) (gfxapi.ResourceID, error)

	// CreateImage allocates an image in LayoutUndefined.
	CreateImage(ctx context.Context, im *gfxapi.Image, usage gfxapi.ImageUsage) (gfxapi.ResourceID, error)

	// CreateImageView builds a view over an image.
	CreateImageView(ctx context.Context, v *gfxapi.ImageView) (gfxapi.ResourceID, error)

	// CreateBuffer allocates a host-visible readback buffer of size bytes,
	// zero-initialized.
	CreateBuffer(ctx context.Context, size uint64) (gfxapi.ResourceID, error)

	// CreateQueryPool allocates an occlusion query pool with count queries,
	// reset and ready to use.
	CreateQueryPool(ctx context.Context, count uint32) (gfxapi.ResourceID, error)

	// Destroy releases a resource created through this Builder. Destroying
	// gfxapi.NilResource is a no-op.
	Destroy(ctx context.Context, id gfxapi.ResourceID)

	// FetchQueryResults blocks until the first count queries of the pool
	// are available and returns their sample counts.
	FetchQueryResults(ctx context.Context, pool gfxapi.ResourceID, count uint32) ([]uint64, error)

	// MapBuffer maps a readback buffer. The returned bytes are valid until
	// UnmapBuffer.
	MapBuffer(ctx context.Context, buf gfxapi.ResourceID) ([]byte, error)

	// UnmapBuffer releases a mapping.
	UnmapBuffer(ctx context.Context, buf gfxapi.ResourceID)

	// Registry lookups. The returned descriptions are owned by the backend
	// and must be treated as immutable; clone before rewriting.
	PipelineInfo(id gfxapi.ResourceID) (*gfxapi.Pipeline, error)
	RenderPassInfo(id gfxapi.ResourceID) (*gfxapi.RenderPass, error)
	FramebufferInfo(id gfxapi.ResourceID) (*gfxapi.Framebuffer, error)
	ImageViewInfo(id gfxapi.ResourceID) (*gfxapi.ImageView, error)
	ImageInfo(id gfxapi.ResourceID) (*gfxapi.Image, error)

	// ImageLayout reports the layout the subresource is in at the current
	// point of replay.
	ImageLayout(img gfxapi.ResourceID, aspect gfxapi.ImageAspect, mip, slice uint32) gfxapi.ImageLayout

	// OpenShaderEditor starts an editing session over a captured shader
	// module's bytecode.
	OpenShaderEditor(ctx context.Context, shader gfxapi.ResourceID) (shadertools.Editor, error)

	// BuiltinShader returns a synthetic fragment shader writing to color
	// output slot. Modules are cached by the backend; the caller does not
	// destroy them.
	BuiltinShader(ctx context.Context, b shadertools.Builtin, slot uint32) (gfxapi.ResourceID, error)
}
