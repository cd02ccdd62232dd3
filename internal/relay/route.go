package relay

import (
	"context"
	"time"

	"github.com/flemzord/mcrelay/internal/proxy"
	"github.com/flemzord/mcrelay/pkg/protocol"
)

// NullRoute is the stand-in routing program used until a real route tree is
// plugged in: it acknowledges writes and misses every read without
// contacting any backend.
type NullRoute struct{}

// Route implements protocol.RouteHandle.
func (NullRoute) Route(_ context.Context, req *protocol.Request) (protocol.Reply, error) {
	switch req.Kind {
	case protocol.KindGet, protocol.KindGets:
		return protocol.NewReply(protocol.ResultNotFound), nil
	case protocol.KindSet, protocol.KindAdd, protocol.KindReplace:
		return protocol.NewReply(protocol.ResultStored), nil
	case protocol.KindDelete:
		return protocol.NewReply(protocol.ResultNotFound), nil
	case protocol.KindTouch:
		return protocol.NewReply(protocol.ResultNotFound), nil
	default:
		return protocol.ErrorReply("null route cannot serve %s requests", req.Kind), nil
	}
}

// DefaultRoutable is the request-kind set accepted by the built-in routes.
func DefaultRoutable() map[protocol.Kind]bool {
	return map[protocol.Kind]bool{
		protocol.KindGet:     true,
		protocol.KindGets:    true,
		protocol.KindSet:     true,
		protocol.KindAdd:     true,
		protocol.KindReplace: true,
		protocol.KindDelete:  true,
		protocol.KindTouch:   true,
	}
}

// StaticConfigFactory returns a factory handing every worker a private
// config snapshot around the given route handle. options is the flattened
// dump served by the service-info options endpoint.
func StaticConfigFactory(route protocol.RouteHandle, version string, options map[string]string) ConfigFactory {
	return func(int) (*proxy.Config, error) {
		return &proxy.Config{
			Route:    route,
			Info:     proxy.NewServiceInfo(version, options),
			Routable: DefaultRoutable(),
			LoadedAt: time.Now(),
		}, nil
	}
}
