package uri

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/librescoot/ndlcom-bridge/pkg/bridge"
	"github.com/librescoot/ndlcom-bridge/pkg/ndlcom"
)

// seedRoutes implements the `&id1,id2,...` suffix of §6's URI table,
// grounded in the original's setRoutingByString/convertStringToIds: each
// comma-separated device id is parsed and, unless it is the broadcast
// id (silently ignored, matching the original's policy), the routing
// table is pre-seeded as if that id had already been learned as arriving
// via iface. This lets a statically-known downstream device receive
// unicast traffic before it has ever actually transmitted a frame.
func seedRoutes(b *bridge.Bridge, iface *bridge.ExternalInterface, routes string) error {
	for _, tok := range strings.Split(routes, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.ParseUint(tok, 10, 8)
		if err != nil {
			return fmt.Errorf("uri: routes: invalid device id %q: %w", tok, err)
		}
		id := byte(n)
		if id == ndlcom.IDBroadcast {
			continue
		}
		b.RoutingTable().Learn(id, iface)
	}
	return nil
}
