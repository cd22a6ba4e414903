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

// Package api describes the recorded command stream that the replay backend
// re-executes: event identifiers, how each event used a resource, and the
// geometry parameters of draw events.
package api

import (
	"fmt"

	"github.com/jpark37/renderdoc/gapis/gfxapi"
)

// EventID is the index of an event in the recorded command stream.
// Event ids are monotonic and assigned by the capture layer; they are never
// reused within a capture.
type EventID uint32

// EventNoID is used when an id must be passed but none exists.
const EventNoID = EventID(0xffffffff)

func (id EventID) String() string {
	if id == EventNoID {
		return "(NoID)"
	}
	return fmt.Sprintf("%d", uint32(id))
}

// Usage describes how an event used a resource.
type Usage int

const (
	// UsageUnknown is a usage the capture layer could not classify.
	UsageUnknown Usage = iota
	// UsageClear is a clear of the resource (render pass load-op clears and
	// explicit clear commands).
	UsageClear
	// UsageColorTarget is a draw writing the resource as a color attachment.
	UsageColorTarget
	// UsageDepthStencilTarget is a draw writing the resource as a
	// depth-stencil attachment.
	UsageDepthStencilTarget
	// UsageShaderWrite is a read-write shader resource write (any stage).
	UsageShaderWrite
	// UsageCopySrc and UsageCopyDst are transfer reads/writes.
	UsageCopySrc
	UsageCopyDst
	// UsageResolveSrc and UsageResolveDst are multisample resolves.
	UsageResolveSrc
	UsageResolveDst
	// UsageGenMips is mip-chain generation.
	UsageGenMips
	// UsageBarrier is a layout transition or other misc command.
	UsageBarrier
)

// DirectWrite reports whether the usage is known to write its destination
// unconditionally, bypassing fragment-level testing. Such events never need
// an occlusion pre-pass.
func (u Usage) DirectWrite() bool {
	switch u {
	case UsageShaderWrite, UsageCopyDst, UsageResolveDst, UsageGenMips:
		return true
	}
	return false
}

// EventUsage pairs an event with the way it used the target resource.
type EventUsage struct {
	Event EventID
	Usage Usage
	// View is the image view through which the resource was used, if the
	// usage went through a view. Views over a subset of the resource are
	// not fully supported by pixel history.
	View gfxapi.ResourceID
}
