package guardian

import (
	"context"

	"github.com/bubbleprotocol/guardian/internal/bubbleerr"
	"github.com/bubbleprotocol/guardian/internal/bubblefile"
	"github.com/bubbleprotocol/guardian/internal/dataserver"
	"github.com/bubbleprotocol/guardian/internal/subscription"
)

// dispatch applies the per-method authorization rule from spec §4.5's
// table and, if satisfied, invokes the matching DataServer call. By the
// time dispatch runs, the filename carries ACC-resolved permissions and
// has already passed the termination check.
func (g *Guardian) dispatch(ctx context.Context, method, contract, signer string, filename *bubblefile.Filename, p *params, listener dataserver.Listener) (any, error) {
	bits := filename.Permissions()
	full := filename.FullFilename()

	switch method {
	case "create":
		if !filename.IsRoot() || !bits.CanWrite() {
			return nil, bubbleerr.NewPermissionDenied("create requires write permission on the bubble root")
		}
		if err := g.DataServer.Create(ctx, contract, p.Options); err != nil {
			return nil, normalizeDataServerErr(err)
		}
		return true, nil

	case "write":
		if !p.HasData || !filename.IsFile() || !bits.CanWrite() {
			return nil, bubbleerr.NewPermissionDenied("write requires write permission on a file")
		}
		if err := g.DataServer.Write(ctx, contract, full, p.Data, p.Options); err != nil {
			return nil, normalizeDataServerErr(err)
		}
		return true, nil

	case "append":
		if !p.HasData || !filename.IsFile() || !(bits.CanAppend() || bits.CanWrite()) {
			return nil, bubbleerr.NewPermissionDenied("append requires append or write permission on a file")
		}
		if err := g.DataServer.Append(ctx, contract, full, p.Data, p.Options); err != nil {
			return nil, normalizeDataServerErr(err)
		}
		return true, nil

	case "read":
		if !bits.CanRead() {
			return nil, bubbleerr.NewPermissionDenied("read requires read permission")
		}
		if filename.IsDirectory() {
			out, err := g.DataServer.List(ctx, contract, full, p.Options)
			if err != nil {
				return nil, normalizeDataServerErr(err)
			}
			return out, nil
		}
		out, err := g.DataServer.Read(ctx, contract, full, p.Options)
		if err != nil {
			return nil, normalizeDataServerErr(err)
		}
		return out, nil

	case "delete":
		if filename.IsRoot() || !bits.CanWrite() {
			return nil, bubbleerr.NewPermissionDenied("delete requires write permission on a non-root target")
		}
		if err := g.DataServer.Delete(ctx, contract, full, p.Options); err != nil {
			return nil, normalizeDataServerErr(err)
		}
		return true, nil

	case "mkdir":
		if filename.IsRoot() || !filename.IsDirectory() || !bits.CanWrite() {
			return nil, bubbleerr.NewPermissionDenied("mkdir requires write permission on a non-root directory")
		}
		if err := g.DataServer.Mkdir(ctx, contract, full, p.Options); err != nil {
			return nil, normalizeDataServerErr(err)
		}
		return true, nil

	case "list":
		if !bits.CanRead() {
			return nil, bubbleerr.NewPermissionDenied("list requires read permission")
		}
		out, err := g.DataServer.List(ctx, contract, full, p.Options)
		if err != nil {
			return nil, normalizeDataServerErr(err)
		}
		return out, nil

	case "subscribe":
		if !bits.CanRead() {
			return nil, bubbleerr.NewPermissionDenied("subscribe requires read permission")
		}
		if listener == nil {
			return nil, bubbleerr.NewInvalidMethodParams("subscribe requires a notification listener", nil)
		}
		wrapped := subscription.Protect(ctx, g.ChainView, g.DataServer, contract, filename.PermissionedPart(), signer, listener)
		id, err := g.DataServer.Subscribe(ctx, contract, full, wrapped, p.Options)
		if err != nil {
			return nil, normalizeDataServerErr(err)
		}
		if g.Tokens == nil {
			return id, nil
		}
		token, err := g.Tokens.Issue(id, contract, full)
		if err != nil {
			return nil, bubbleerr.NewInternalErrorCause("failed to issue subscription token", err)
		}
		return token, nil

	case "terminate":
		// Only reachable here when the termination bit was not set; a
		// client cannot self-terminate a live bubble through this path
		// (spec §4.5's table: terminate is otherwise denied).
		return nil, bubbleerr.NewPermissionDenied("terminate is only honored once the bubble's termination bit is set")

	default:
		return nil, bubbleerr.NewMethodNotFound(method)
	}
}
