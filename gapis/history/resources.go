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

	"github.com/jpark37/renderdoc/gapis/gfxapi"
	"github.com/jpark37/renderdoc/gapis/replay"
)

const readbackAlignment = 4096

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// setupResources allocates the scratch images shared by every pass and the
// readback buffer sized for numEvents event records. Fills info in place; on
// error everything allocated so far is released.
func setupResources(ctx context.Context, b replay.Builder, info *callbackInfo, numEvents int) error {
	var err error
	defer func() {
		if err != nil {
			destroyResources(ctx, b, info)
		}
	}()

	// RGBA32F copy of the target for primitive ids and shader outputs.
	info.colorImage, err = b.CreateImage(ctx, &gfxapi.Image{
		Format:  gfxapi.FormatR32G32B32A32Sfloat,
		Extent:  info.extent,
		Samples: info.samples,
		Layers:  info.layers,
		Mips:    info.mips,
	}, gfxapi.UsageColorAttachment|gfxapi.UsageTransferSrc)
	if err != nil {
		return err
	}
	info.colorView, err = b.CreateImageView(ctx, &gfxapi.ImageView{
		Image:     info.colorImage,
		Format:    gfxapi.FormatR32G32B32A32Sfloat,
		BaseMip:   info.sub.Mip,
		BaseSlice: info.sub.Slice,
	})
	if err != nil {
		return err
	}

	// Depth-stencil target whose stencil byte counts fragments. Its depth
	// plane doubles as the isolated-fragment depth output.
	info.counterImage, err = b.CreateImage(ctx, &gfxapi.Image{
		Format:  gfxapi.FormatD32SfloatS8Uint,
		Extent:  info.extent,
		Samples: info.samples,
		Layers:  info.layers,
		Mips:    1,
	}, gfxapi.UsageDepthStencilAttachment|gfxapi.UsageTransferSrc|gfxapi.UsageTransferDst)
	if err != nil {
		return err
	}
	info.counterView, err = b.CreateImageView(ctx, &gfxapi.ImageView{
		Image:  info.counterImage,
		Format: gfxapi.FormatD32SfloatS8Uint,
	})
	if err != nil {
		return err
	}

	// Multisampled sources cannot be copied texel-wise; resolves go through
	// single-sample staging first.
	if info.samples > 1 {
		info.stagingImage, err = b.CreateImage(ctx, &gfxapi.Image{
			Format:  info.targetFormat,
			Extent:  gfxapi.Extent3D{Width: info.extent.Width, Height: info.extent.Height, Depth: 1},
			Samples: 1,
			Layers:  1,
			Mips:    1,
		}, gfxapi.UsageTransferSrc|gfxapi.UsageTransferDst)
		if err != nil {
			return err
		}
		info.stencilStagingImage, err = b.CreateImage(ctx, &gfxapi.Image{
			Format:  gfxapi.FormatD32SfloatS8Uint,
			Extent:  gfxapi.Extent3D{Width: info.extent.Width, Height: info.extent.Height, Depth: 1},
			Samples: 1,
			Layers:  1,
			Mips:    1,
		}, gfxapi.UsageTransferSrc|gfxapi.UsageTransferDst)
		if err != nil {
			return err
		}
	}

	size := alignUp(uint64(numEvents)*eventInfoSize, readbackAlignment)
	info.readback, err = b.CreateBuffer(ctx, size)
	if err != nil {
		return err
	}
	info.readbackSize = size
	return nil
}

// ensureReadback grows the readback buffer to at least size bytes, replacing
// it with a fresh zeroed buffer. Callers must have consumed any previous
// contents.
func ensureReadback(ctx context.Context, b replay.Builder, info *callbackInfo, size uint64) error {
	size = alignUp(size, readbackAlignment)
	if size <= info.readbackSize {
		return nil
	}
	buf, err := b.CreateBuffer(ctx, size)
	if err != nil {
		return err
	}
	b.Destroy(ctx, info.readback)
	info.readback = buf
	info.readbackSize = size
	return nil
}

func destroyResources(ctx context.Context, b replay.Builder, info *callbackInfo) {
	for _, id := range []gfxapi.ResourceID{
		info.colorView, info.colorImage,
		info.counterView, info.counterImage,
		info.stagingImage, info.stencilStagingImage,
		info.readback,
	} {
		b.Destroy(ctx, id)
	}
	info.colorImage, info.colorView = gfxapi.NilResource, gfxapi.NilResource
	info.counterImage, info.counterView = gfxapi.NilResource, gfxapi.NilResource
	info.stagingImage, info.stencilStagingImage = gfxapi.NilResource, gfxapi.NilResource
	info.readback = gfxapi.NilResource
}
