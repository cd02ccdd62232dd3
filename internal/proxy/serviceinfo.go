package proxy

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/flemzord/mcrelay/pkg/protocol"
)

// ServiceInfo serves the __mcrouter__. diagnostic namespace. A Get whose
// key starts with the internal prefix is answered here and never reaches
// the route handle; the key suffix selects a sub-endpoint. Arguments follow
// the endpoint name separated by dots, e.g. "options.client_queue_size".
type ServiceInfo struct {
	version string
	options map[string]string
}

// NewServiceInfo builds the diagnostic surface for one config snapshot.
// options is a flattened dump of the effective options, served verbatim.
func NewServiceInfo(version string, options map[string]string) *ServiceInfo {
	return &ServiceInfo{version: version, options: options}
}

// HandleRequest answers the sub-endpoint named by suffix, replying through
// ctx. Exactly one reply is sent, including for unknown endpoints and
// handler failures. Worker loop only.
func (si *ServiceInfo) HandleRequest(suffix string, ctx *RequestContext) {
	name, args, _ := strings.Cut(suffix, ".")

	reply, err := si.handle(name, args, ctx)
	if err != nil {
		ctx.SendReply(protocol.ErrorReply("Error processing service request %s: %v", name, err))
		return
	}
	ctx.SendReply(reply)
}

func (si *ServiceInfo) handle(name, args string, ctx *RequestContext) (protocol.Reply, error) {
	switch name {
	case "version":
		return protocol.ValueReply([]byte(si.version)), nil

	case "config_age":
		cfg := ctx.Config()
		if cfg == nil {
			return protocol.Reply{}, fmt.Errorf("no config snapshot")
		}
		age := int64(time.Since(cfg.LoadedAt) / time.Second)
		return protocol.ValueReply([]byte(fmt.Sprintf("%d", age))), nil

	case "options":
		return si.optionsReply(args)

	case "stats":
		return ctx.proxy.stats.statsReply(args)

	case "hostid":
		host, err := os.Hostname()
		if err != nil {
			return protocol.Reply{}, err
		}
		return protocol.ValueReply([]byte(host)), nil

	default:
		return protocol.Reply{}, fmt.Errorf("unknown request")
	}
}

// optionsReply serves either one named option or the full sorted dump.
func (si *ServiceInfo) optionsReply(name string) (protocol.Reply, error) {
	if name != "" {
		v, ok := si.options[name]
		if !ok {
			return protocol.Reply{}, fmt.Errorf("unknown option %q", name)
		}
		return protocol.ValueReply([]byte(v)), nil
	}

	keys := make([]string, 0, len(si.options))
	for k := range si.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s %s\r\n", k, si.options[k])
	}
	return protocol.ValueReply([]byte(b.String())), nil
}
