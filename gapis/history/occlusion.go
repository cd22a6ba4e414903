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

	"golang.org/x/exp/slices"

	"github.com/jpark37/renderdoc/gapis/api"
	"github.com/jpark37/renderdoc/gapis/gfxapi"
	"github.com/jpark37/renderdoc/gapis/replay"
)

// occlusionPass filters draw events down to those that could have touched
// the pixel: each draw is replayed with all tests off, color writes masked,
// and the scissor pinned to the pixel, inside an occlusion query.
type occlusionPass struct {
	replay.NopHooks
	callback

	events []api.EventID

	// pipes caches the counter pipeline per base pipeline. Replacement
	// shader selection depends only on the bound pipeline, so the event id
	// is not part of the key.
	pipes   map[gfxapi.ResourceID]gfxapi.ResourceID
	queries map[api.EventID]uint32
	results []uint64
}

func newOcclusionPass(cb callback, pool gfxapi.ResourceID, events []api.EventUsage) *occlusionPass {
	p := &occlusionPass{
		callback: cb,
		pipes:    map[gfxapi.ResourceID]gfxapi.ResourceID{},
		queries:  map[api.EventID]uint32{},
	}
	p.pool = pool
	for _, e := range events {
		p.events = append(p.events, e.Event)
	}
	return p
}

func (p *occlusionPass) PreDraw(ctx context.Context, id api.EventID, cmd replay.CommandBuffer) {
	if p.err != nil || !slices.Contains(p.events, id) {
		return
	}
	st := p.ctrl.CmdRenderState()
	prev := st.Clone()

	pipe, err := p.occlusionPipeline(ctx, id, st.Pipeline, p.framebufferIndex(st.FramebufferAttachments))
	if err != nil {
		p.fail(ctx, err)
		return
	}
	st.Pipeline = pipe
	p.ctrl.BindPipeline(cmd, replay.BindGraphics, true)

	query := uint32(len(p.queries))
	cmd.BeginQuery(p.pool, query)
	cmd.Draw(p.ctrl.Draw(id))
	cmd.EndQuery(p.pool, query)
	p.queries[id] = query

	st.Assign(prev)
	p.ctrl.BindPipeline(cmd, replay.BindGraphics, true)
}

// occlusionPipeline builds (or reuses) the counter pipeline variant with
// all color writes disabled and a fixed color fragment shader; only the
// sample count matters, not the color output.
func (p *occlusionPass) occlusionPipeline(ctx context.Context, id api.EventID, base gfxapi.ResourceID, fbIndex uint32) (gfxapi.ResourceID, error) {
	if pipe, ok := p.pipes[base]; ok {
		// Dynamic scissors still need pinning for this draw.
		info, err := p.builder.PipelineInfo(base)
		if err != nil {
			return gfxapi.NilResource, err
		}
		if info.DynamicScissor {
			// Only mutates render state scissors; the registry description
			// stays untouched.
			p.scissorToPixel(info)
		}
		return pipe, nil
	}
	q, err := p.makeCounterPipeline(ctx, id, base)
	if err != nil {
		return gfxapi.NilResource, err
	}
	for i := range q.Blends {
		q.Blends[i].WriteMask = 0
	}
	if q.Shaders[gfxapi.StageFragment].Bound() {
		sh, err := p.shaders.fixedColorShader(ctx, fbIndex)
		if err != nil {
			return gfxapi.NilResource, err
		}
		q.Shaders[gfxapi.StageFragment] = gfxapi.ShaderBinding{Module: sh, EntryPoint: "main"}
	}
	pipe, err := p.builder.CreateGraphicsPipeline(ctx, q)
	if err != nil {
		return gfxapi.NilResource, err
	}
	p.pipes[base] = pipe
	return pipe, nil
}

// fetchResults blocks until every recorded query is available.
func (p *occlusionPass) fetchResults(ctx context.Context) error {
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

// result returns the sample count for an event, or 0 when the event
// recorded no query.
func (p *occlusionPass) result(id api.EventID) uint64 {
	q, ok := p.queries[id]
	if !ok || int(q) >= len(p.results) {
		return 0
	}
	return p.results[q]
}

func (p *occlusionPass) destroy(ctx context.Context) {
	for _, pipe := range p.pipes {
		p.builder.Destroy(ctx, pipe)
	}
	p.callback.destroy(ctx)
}
