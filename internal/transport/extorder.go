package transport

import (
	"fmt"
	"strconv"
	"strings"
)

// parseExtensionOrder turns a "-"-separated list of decimal TLS extension
// ids (as carried on fingerprint.Spec.TLSExtensionOrder) into the ordered
// id slice BuildClientHelloSpec walks to assemble utls.TLSExtension values
// in the exact order the target browser sends them.
func parseExtensionOrder(order string) ([]extensionID, error) {
	if order == "" {
		return nil, nil
	}
	parts := strings.Split(order, "-")
	ids := make([]extensionID, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("transport: invalid extension id %q: %w", p, err)
		}
		ids = append(ids, extensionID(v))
	}
	return ids, nil
}
