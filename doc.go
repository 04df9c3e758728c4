// Package mediaflow provides the approval workflow behind media access
// requests: a requester drafts and submits a request, then the line manager,
// security and IT each decide on it in turn.
//
// The engine is embedded in a host application, which authenticates actors
// and renders pages. The root package wires the pluggable layers together:
//
//   - workflow    – the request state machine and its transition guards
//   - ledger      – the append-only decision history
//   - notify      – recipient resolution and mail fan-out after each transition
//   - emailaction – single-use tokens letting a stage decide from an email link
//
// Hosts typically interact with the engine via the Service façade:
//
//	srv, _ := mediaflow.New(ctx, mediaflow.WithConfig(config))
//	rt := srv.Runtime()
//	draft, _ := rt.CreateDraft(ctx, actor, &workflow.Draft{...})
//	result, _ := rt.Submit(ctx, actor, draft.Request.ID, true)
//
// Storage (memory, fs, sqlite) and mail transport (smtp, pickup folder,
// memory) are selected through Config.
package mediaflow
