//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"strings"
	"syscall/js"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/indexeddb"
	"go.uber.org/zap"

	"github.com/kittclouds/codexkitt/internal/aicontext"
	"github.com/kittclouds/codexkitt/internal/mentions"
	"github.com/kittclouds/codexkitt/internal/store"
)

// Version info
const Version = "0.1.0"

// Global state
var (
	memStore   *store.MemStore
	scans      *mentions.Service
	builder    *aicontext.Builder
	snapshotFS hackpadfs.FS
)

func main() {
	memStore = store.NewMemStore()
	scans = mentions.NewService(memStore, mentions.WithLogger(zap.NewNop()))
	builder = aicontext.NewBuilder(memStore, aicontext.DefaultConfig())
	println("[CodexKitt] WASM Ready v" + Version)

	js.Global().Set("CodexKitt", js.ValueOf(map[string]interface{}{
		"version":      js.FuncOf(getVersion),
		"importBundle": js.FuncOf(importBundle),
		"upsertScene":  js.FuncOf(upsertScene),
		"saveScene":    js.FuncOf(saveScene),
		"scan":         js.FuncOf(scan),
		"buildContext": js.FuncOf(buildContext),
		"buildString":  js.FuncOf(buildString),
		"relatedOf":    js.FuncOf(relatedOf),
		"mentionStats": js.FuncOf(mentionStats),
		// Snapshot API (IndexedDB)
		"initSnapshots": js.FuncOf(initSnapshots),
		"saveSnapshot":  js.FuncOf(saveSnapshot),
	}))

	select {}
}

func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

// importBundle loads a novel bundle into the in-memory store.
// Args: [bundleJSON]
func importBundle(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: bundleJSON")
	}
	b, err := store.DecodeBundle(strings.NewReader(args[0].String()))
	if err != nil {
		return errorResult(err.Error())
	}
	n, err := store.Import(context.Background(), memStore, b)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(n)
}

// upsertScene stores a scene without scanning it.
// Args: [sceneJSON]
func upsertScene(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: sceneJSON")
	}
	var sc store.Scene
	if err := json.Unmarshal([]byte(args[0].String()), &sc); err != nil {
		return errorResult("invalid scene json: " + err.Error())
	}
	if err := memStore.UpsertScene(context.Background(), &sc); err != nil {
		return errorResult(err.Error())
	}
	return successResult("stored " + sc.ID)
}

// saveScene stores a scene and schedules a debounced scan, like an editor save.
// Args: [sceneJSON]
func saveScene(this js.Value, args []js.Value) interface{} {
	res := upsertScene(this, args)
	if s, ok := res.(string); ok && strings.Contains(s, `"error"`) {
		return res
	}
	var sc store.Scene
	_ = json.Unmarshal([]byte(args[0].String()), &sc)
	scans.HandleSave(mentions.UnitRef{Kind: store.UnitScene, ID: sc.ID})
	return successResult("scheduled " + sc.ID)
}

// scan synchronizes one unit now.
// Args: [kind ("scene"|"message"), id]
func scan(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("requires 2 args: kind, id")
	}
	ref := mentions.UnitRef{Kind: store.UnitKind(args[0].String()), ID: args[1].String()}
	changes, err := scans.ScanContentUnit(context.Background(), ref)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(changes)
}

// contextRequest is the JSON argument of buildContext and buildString.
type contextRequest struct {
	Detected   []string `json:"detected"`
	Manual     []string `json:"manual"`
	Depth      *int     `json:"depth"`
	ModelLimit *int     `json:"modelLimit"`
	NovelID    string   `json:"novelId"`
}

func (r contextRequest) options() []aicontext.Option {
	var opts []aicontext.Option
	if r.Depth != nil {
		opts = append(opts, aicontext.WithDepth(*r.Depth))
	}
	if r.ModelLimit != nil {
		opts = append(opts, aicontext.WithModelLimit(*r.ModelLimit))
	}
	if len(r.Manual) > 0 {
		opts = append(opts, aicontext.WithManual(r.Manual...))
	}
	if r.NovelID != "" {
		opts = append(opts, aicontext.WithAlways(r.NovelID))
	}
	return opts
}

func parseContextRequest(args []js.Value) (contextRequest, error) {
	var req contextRequest
	if len(args) < 1 {
		return req, nil
	}
	err := json.Unmarshal([]byte(args[0].String()), &req)
	return req, err
}

var lastPayload *aicontext.Payload
var lastRequest contextRequest

// buildContext assembles the context payload.
// Args: [requestJSON]
func buildContext(this js.Value, args []js.Value) interface{} {
	req, err := parseContextRequest(args)
	if err != nil {
		return errorResult("invalid request json: " + err.Error())
	}
	p, err := builder.Build(context.Background(), req.Detected, req.options()...)
	if err != nil {
		return errorResult(err.Error())
	}
	lastPayload, lastRequest = p, req
	return jsonResult(p)
}

// buildString returns the wrapped prompt text.
// Args: [requestJSON]
func buildString(this js.Value, args []js.Value) interface{} {
	req, err := parseContextRequest(args)
	if err != nil {
		return errorResult("invalid request json: " + err.Error())
	}
	s, err := builder.BuildString(context.Background(), req.Detected, req.options()...)
	if err != nil {
		return errorResult(err.Error())
	}
	return s
}

// relatedOf lists direct neighbours for UI previews.
// Args: [entityId]
func relatedOf(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: entityId")
	}
	ids, err := builder.RelatedOf(context.Background(), args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(ids)
}

// mentionStats returns total and per-unit counts.
// Args: [entityId]
func mentionStats(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: entityId")
	}
	stats, err := scans.MentionStats(context.Background(), args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(stats)
}

// initSnapshots opens the IndexedDB-backed filesystem for payload snapshots.
func initSnapshots(this js.Value, args []js.Value) interface{} {
	fs, err := indexeddb.NewFS(context.Background(), "codexkitt", indexeddb.Options{})
	if err != nil {
		return errorResult("failed to create idb fs: " + err.Error())
	}
	snapshotFS = fs
	return successResult("snapshots initialized")
}

// saveSnapshot writes the last built payload.
// Args: [path]
func saveSnapshot(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("requires 1 arg: path")
	}
	if snapshotFS == nil {
		return errorResult("snapshots not initialized")
	}
	if lastPayload == nil {
		return errorResult("no payload built yet")
	}
	depth := aicontext.DefaultConfig().Depth
	if lastRequest.Depth != nil {
		depth = *lastRequest.Depth
	}
	snap := &aicontext.Snapshot{Detected: lastRequest.Detected, Depth: depth, Payload: lastPayload}
	if err := aicontext.WriteSnapshot(snapshotFS, args[0].String(), snap); err != nil {
		return errorResult(err.Error())
	}
	return successResult("saved")
}

// Helper: Create error result
func errorResult(msg string) interface{} {
	result := map[string]interface{}{
		"error": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Create success result
func successResult(msg string) interface{} {
	result := map[string]interface{}{
		"success": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

func jsonResult(v interface{}) interface{} {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult(err.Error())
	}
	return string(jsonBytes)
}
