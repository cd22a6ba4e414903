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

type primitiveKey struct {
	event api.EventID
	prim  int32
}

// discardedPass settles which suspect fragments were shader-discarded: each
// suspect primitive replays alone, tests off and writes masked, inside an
// occlusion query. Zero samples means the shader discarded the fragment.
type discardedPass struct {
	replay.NopHooks
	callback

	// events maps an event to the primitives worth re-checking.
	events map[api.EventID][]int32

	pipesToDestroy []gfxapi.ResourceID
	queries        map[primitiveKey]uint32
	results        []uint64
}

func newDiscardedPass(cb callback, pool gfxapi.ResourceID, events map[api.EventID][]int32) *discardedPass {
	p := &discardedPass{
		callback: cb,
		events:   events,
		queries:  map[primitiveKey]uint32{},
	}
	p.pool = pool
	return p
}

func (p *discardedPass) PreDraw(ctx context.Context, id api.EventID, cmd replay.CommandBuffer) {
	prims := p.events[id]
	if p.err != nil || len(prims) == 0 {
		return
	}
	st := p.ctrl.CmdRenderState()
	prev := st.Clone()

	pipe, err := p.discardPipeline(ctx, id, st.Pipeline)
	if err != nil {
		p.fail(ctx, err)
		return
	}
	st.Pipeline = pipe
	p.ctrl.BindPipeline(cmd, replay.BindGraphics, false)

	for _, prim := range prims {
		query := uint32(len(p.queries))
		cmd.BeginQuery(p.pool, query)
		cmd.Draw(p.primitiveDraw(id, prim))
		cmd.EndQuery(p.pool, query)
		p.queries[primitiveKey{id, prim}] = query
	}

	st.Assign(prev)
	p.ctrl.BindPipeline(cmd, replay.BindGraphics, false)
}

// discardPipeline keeps the original fragment shader (its discard is what is
// being measured) with the stencil counter off and every write masked.
func (p *discardedPass) discardPipeline(ctx context.Context, id api.EventID, base gfxapi.ResourceID) (gfxapi.ResourceID, error) {
	q, err := p.makeCounterPipeline(ctx, id, base)
	if err != nil {
		return gfxapi.NilResource, err
	}
	q.StencilTest = false
	for i := range q.Blends {
		q.Blends[i].WriteMask = 0
	}
	pipe, err := p.builder.CreateGraphicsPipeline(ctx, q)
	if err != nil {
		return gfxapi.NilResource, err
	}
	p.pipesToDestroy = append(p.pipesToDestroy, pipe)
	return pipe, nil
}

// primitiveDraw narrows the original draw down to one primitive.
func (p *discardedPass) primitiveDraw(id api.EventID, prim int32) *api.Draw {
	d := *p.ctrl.Draw(id)
	d.Elements = d.Topology.VerticesPerPrimitive()
	if d.Instances == 0 {
		d.Instances = 1
	}
	offset := d.Topology.PrimitiveVertexOffset(uint32(prim))
	if d.Indexed() {
		d.FirstIndex += offset
	} else {
		d.VertexOffset += offset
	}
	return &d
}

func (p *discardedPass) fetchResults(ctx context.Context) error {
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

// primitiveDiscarded reports whether the fragment of (event, prim) was
// shader-discarded, meaning its lone replay produced no samples.
func (p *discardedPass) primitiveDiscarded(id api.EventID, prim int32) bool {
	q, ok := p.queries[primitiveKey{id, prim}]
	if !ok || int(q) >= len(p.results) {
		return false
	}
	return p.results[q] == 0
}

func (p *discardedPass) destroy(ctx context.Context) {
	for _, pipe := range p.pipesToDestroy {
		p.builder.Destroy(ctx, pipe)
	}
	p.callback.destroy(ctx)
}
