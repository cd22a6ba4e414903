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

package api

import "github.com/jpark37/renderdoc/gapis/gfxapi"

// DrawFlags classify a recorded event.
type DrawFlags uint32

const (
	// DrawIndexed is set on indexed draws.
	DrawIndexed DrawFlags = 1 << iota
	// DrawInstanced is set on draws with more than one instance.
	DrawInstanced
	// DrawDispatch is set on compute dispatches.
	DrawDispatch
	// DrawClear is set on clear commands.
	DrawClear
	// DrawBeginPass is set on events that begin a render pass.
	DrawBeginPass
	// DrawEndPass is set on events that end a render pass.
	DrawEndPass
	// DrawCopy is set on transfer commands.
	DrawCopy
)

// Draw describes the geometry and instancing parameters of a recorded draw
// event, captured at record time. For indexed draws Elements counts indices,
// otherwise vertices.
type Draw struct {
	Flags DrawFlags

	Elements       uint32
	Instances      uint32
	FirstIndex     uint32
	BaseVertex     int32
	VertexOffset   uint32
	InstanceOffset uint32

	Topology gfxapi.Topology

	// DepthOut is the depth-stencil image written by the draw, or
	// gfxapi.NilResource if depth output was not bound.
	DepthOut gfxapi.ResourceID
}

// Indexed reports whether the draw uses an index buffer.
func (d *Draw) Indexed() bool { return d.Flags&DrawIndexed != 0 }
