package sessiongate

import (
	"context"
	"io"
	"net/http"

	"github.com/MrEthical07/sessiongate/internal/audit"
)

// AuditEvent is one audit record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

// NewJSONLinesSink writes one JSON object per event to w.
func NewJSONLinesSink(w io.Writer) AuditSink {
	return audit.NewJSONLinesSink(w)
}

// NewChannelSink buffers events in a channel readable via Events.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

func (g *Gateway) emitAudit(r *http.Request, typ, email, userID string, success bool, reason string) {
	if g.audit == nil {
		return
	}
	ctx := context.Background()
	ip := ""
	if r != nil {
		ctx = r.Context()
		ip = clientIPFromContext(ctx)
	}
	g.audit.Emit(ctx, AuditEvent{
		Type:    typ,
		Email:   email,
		UserID:  userID,
		IP:      ip,
		Success: success,
		Reason:  reason,
	})
}
