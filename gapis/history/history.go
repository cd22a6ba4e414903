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
	"golang.org/x/exp/slices"

	"github.com/jpark37/renderdoc/gapis/api"
	"github.com/jpark37/renderdoc/gapis/config"
	"github.com/jpark37/renderdoc/gapis/gfxapi"
	"github.com/jpark37/renderdoc/gapis/replay"
)

// queriesPerDraw is the number of occlusion queries the tests-failed pass
// may record per draw, one per possible sub-test.
const queriesPerDraw = 6

// PixelHistory reconstructs the modification timeline of one pixel of the
// target image. events lists every recorded event that used the target, in
// stream order. The result is ordered by event, then fragment index.
//
// Returns an empty history when the device lacks the needed capability, the
// target format is undefined, or events is empty. Resource creation failures
// are fatal for the invocation and return an error with no partial result.
func PixelHistory(ctx context.Context, ctrl replay.Controller, builder replay.Builder, cfg config.Settings, events []api.EventUsage, target gfxapi.ResourceID, x, y uint32, sub api.Subresource) ([]Modification, error) {
	logger := log.FromContext(ctx)
	logger.Debug("pixel history", "x", x, "y", y, "events", len(events))

	feats := ctrl.Features()
	if !feats.PixelHistory || !feats.OcclusionQueries {
		logger.Warn("pixel history is not supported by the replay device")
		return nil, nil
	}
	if len(events) == 0 {
		return nil, nil
	}
	imgInfo, err := builder.ImageInfo(target)
	if err != nil {
		return nil, err
	}
	if imgInfo.Format == gfxapi.FormatUndefined {
		logger.Warn("pixel history target has undefined format", "target", target)
		return nil, nil
	}

	sampleIdx := sub.Sample
	if sampleIdx >= imgInfo.Samples {
		sampleIdx = 0
	}
	sampleMask := uint32(1) << sampleIdx

	lastEvent := events[len(events)-1].Event

	info := &callbackInfo{
		target:       target,
		targetFormat: imgInfo.Format,
		extent:       imgInfo.Extent,
		layers:       imgInfo.Layers,
		mips:         imgInfo.Mips,
		samples:      imgInfo.Samples,
		sub:          sub,
		x:            x,
		y:            y,
		sampleMask:   sampleMask,
	}
	if err := setupResources(ctx, builder, info, len(events)); err != nil {
		return nil, err
	}
	defer destroyResources(ctx, builder, info)

	shaders := newShaderCache(builder, cfg.StripShaderSideEffects)
	defer shaders.destroy(ctx)

	defer ctrl.SetEventHooks(nil)

	cb := callback{ctrl: ctrl, builder: builder, shaders: shaders, info: info}

	// Pass 1: occlusion filter over all potential events.
	occPool, err := builder.CreateQueryPool(ctx, uint32(len(events)))
	if err != nil {
		return nil, err
	}
	defer builder.Destroy(ctx, occPool)
	occ := newOcclusionPass(cb, occPool, events)
	defer occ.destroy(ctx)
	if err := runPass(ctx, ctrl, occ, &occ.callback, lastEvent); err != nil {
		return nil, err
	}
	if err := occ.fetchResults(ctx); err != nil {
		return nil, err
	}

	// Candidate events: draws that produced samples with all tests off, plus
	// clears and direct writes which bypass fragment testing.
	var modEvents, drawEvents []api.EventID
	for _, e := range events {
		clear := e.Usage == api.UsageClear
		directWrite := e.Usage.DirectWrite()
		if !e.View.IsNil() {
			if view, err := builder.ImageViewInfo(e.View); err == nil &&
				(view.BaseMip != sub.Mip || view.BaseSlice != sub.Slice) {
				// The usage went through a view over a different subresource.
				logger.Debug("skipping event via non-matching view", "event", e.Event)
				continue
			}
		}
		switch {
		case directWrite || clear:
			modEvents = append(modEvents, e.Event)
		case occ.result(e.Event) > 0:
			drawEvents = append(drawEvents, e.Event)
			modEvents = append(modEvents, e.Event)
		}
	}

	// Pass 2: pre/post values and fragment counts for every candidate.
	cs := newColorStencilPass(cb, modEvents)
	defer cs.destroy(ctx)
	if err := runPass(ctx, ctrl, cs, &cs.callback, lastEvent); err != nil {
		return nil, err
	}

	// Pass 3: per-test occlusion for the surviving draws.
	var tf *testsFailedPass
	if len(drawEvents) > 0 {
		tfPool, err := builder.CreateQueryPool(ctx, uint32(len(drawEvents))*queriesPerDraw)
		if err != nil {
			return nil, err
		}
		defer builder.Destroy(ctx, tfPool)
		tf = newTestsFailedPass(cb, tfPool, drawEvents)
		defer tf.destroy(ctx)
		if err := runPass(ctx, ctrl, tf, &tf.callback, lastEvent); err != nil {
			return nil, err
		}
		if err := tf.fetchResults(ctx); err != nil {
			return nil, err
		}
	}

	var history []Modification
	for _, e := range events {
		clear := e.Usage == api.UsageClear
		directWrite := e.Usage.DirectWrite()
		if !clear && !directWrite && !slices.Contains(drawEvents, e.Event) {
			continue
		}
		mod := Modification{Event: e.Event, Primitive: -1, DirectWrite: directWrite}
		if !clear && !directWrite {
			flags := tf.eventFlags(e.Event)
			seedStaticFlags(&mod, flags)
			updateTestsFailed(&mod, flags, tf.hasEarlyFragments(e.Event), func(test testFlags) uint64 {
				return tf.occlusionResult(e.Event, test)
			})
		}
		history = append(history, mod)
	}

	// Decode the color-stencil readback and expand events into one entry per
	// fragment.
	data, err := builder.MapBuffer(ctx, info.readback)
	if err != nil {
		return nil, err
	}
	eventsWithFrags := map[api.EventID]uint32{}
	someFragsClipped := map[api.EventID]bool{}
	for h := 0; h < len(history); {
		mod := &history[h]
		idx, ok := cs.eventIndex(mod.Event)
		if !ok {
			// Secondary command buffer draws have no record of their own.
			h++
			continue
		}
		rec := data[uint64(idx)*eventInfoSize:]
		mod.PreMod = decodeValue(info.targetFormat, rec[eventInfoPremod:])
		mod.PostMod = decodeValue(info.targetFormat, rec[eventInfoPostmod:])

		without, with := eventCounters(rec)
		frags := without
		if cfg.MaxFragmentsPerEvent > 0 && frags > int32(cfg.MaxFragmentsPerEvent) {
			frags = int32(cfg.MaxFragmentsPerEvent)
		}
		if cfg.VerboseReplay {
			logger.Debug("fragment counts", "event", mod.Event, "withoutDiscard", without, "withDiscard", with)
		}
		if frags > 0 {
			eventsWithFrags[mod.Event] = uint32(frags)
			someFragsClipped[mod.Event] = with < without
		}

		for f := int32(1); f < frags; f++ {
			history = slices.Insert(history, h+1, *mod)
		}
		for f := int32(0); f < frags; f++ {
			history[h+int(f)].FragIndex = uint32(f)
		}
		if frags > 1 {
			h += int(frags)
		} else {
			h++
		}
	}
	builder.UnmapBuffer(ctx, info.readback)

	if len(eventsWithFrags) == 0 {
		return history, nil
	}

	// Pass 4: per-fragment primitive ids, shader outputs and intermediate
	// post-modification values.
	var totalFrags uint32
	lastFragEvent := api.EventID(0)
	for id, frags := range eventsWithFrags {
		totalFrags += frags
		if id > lastFragEvent {
			lastFragEvent = id
		}
	}
	if err := ensureReadback(ctx, builder, info, uint64(totalFrags)*fragmentInfoSize); err != nil {
		return nil, err
	}
	pf := newPerFragmentPass(cb, eventsWithFrags)
	defer pf.destroy(ctx)
	if err := runPass(ctx, ctrl, pf, &pf.callback, lastFragEvent); err != nil {
		return nil, err
	}

	fragData, err := builder.MapBuffer(ctx, info.readback)
	if err != nil {
		return nil, err
	}
	defer builder.UnmapBuffer(ctx, info.readback)

	// Collect the primitives of events where the original shader produced
	// fewer fragments than the fixed one; those primitives may have been
	// discarded.
	discardedPrims := map[api.EventID][]int32{}
	primitivesToCheck := uint32(0)
	for h := range history {
		eid := history[h].Event
		off, ok := pf.eventOffset(eid)
		if !ok {
			continue
		}
		rec := fragData[uint64(off+history[h].FragIndex)*fragmentInfoSize:]
		prim := fragmentPrimitive(rec)
		history[h].Primitive = prim
		if someFragsClipped[eid] {
			discardedPrims[eid] = append(discardedPrims[eid], prim)
			primitivesToCheck++
		}
	}

	// Pass 5: one isolated occlusion replay per suspect primitive.
	if primitivesToCheck > 0 {
		dcPool, err := builder.CreateQueryPool(ctx, primitivesToCheck)
		if err != nil {
			return nil, err
		}
		defer builder.Destroy(ctx, dcPool)
		dc := newDiscardedPass(cb, dcPool, discardedPrims)
		defer dc.destroy(ctx)
		if err := runPass(ctx, ctrl, dc, &dc.callback, lastFragEvent); err != nil {
			return nil, err
		}
		if err := dc.fetchResults(ctx); err != nil {
			return nil, err
		}
		for h := range history {
			history[h].ShaderDiscarded = dc.primitiveDiscarded(history[h].Event, history[h].Primitive)
		}
	}

	// Fill per-fragment values. Discarded fragments consumed no storage slot,
	// so a running offset shifts the index of every later fragment in the
	// same event.
	discardOffset := uint32(0)
	for h := range history {
		eid := history[h].Event
		if h > 0 && eid != history[h-1].Event {
			discardOffset = 0
		}
		off, ok := pf.eventOffset(eid)
		if !ok {
			continue
		}
		if h > 0 && history[h-1].Event == eid {
			// Later fragments see the pixel as the previous one left it.
			history[h].PreMod = history[h-1].PostMod
		}
		if history[h].ShaderDiscarded {
			discardOffset++
			// A discarded fragment leaves the pixel as the previous fragment
			// left it.
			if h > 0 {
				history[h].PostMod = history[h-1].PostMod
			}
			continue
		}
		rec := fragData[uint64(off+history[h].FragIndex-discardOffset)*fragmentInfoSize:]
		history[h].ShaderOut = decodeValue(gfxapi.FormatR32G32B32A32Sfloat, rec[fragmentInfoShaderOut:])
		if h+1 < len(history) && history[h+1].Event == eid {
			// The last fragment's post-modification value is the event's own.
			history[h].PostMod = decodeValue(info.targetFormat, rec[fragmentInfoPostMod:])
		}
	}

	return history, nil
}

// runPass installs the hooks, replays the whole range and waits for the
// device, then surfaces the first error a hook recorded.
func runPass(ctx context.Context, ctrl replay.Controller, hooks replay.EventHooks, cb *callback, last api.EventID) error {
	ctrl.SetEventHooks(hooks)
	if err := ctrl.ReplayRange(ctx, 0, last); err != nil {
		return err
	}
	if err := ctrl.SubmitAndWait(ctx); err != nil {
		return err
	}
	return cb.err
}
