package utils

import (
	"crypto/md5"
	"sort"
	"strings"

	"github.com/gofrs/uuid"
)

// GenUuidFromStrings derives a name-based (md5, version 3 layout) uuid from the
// given parts. The parts are sorted first so the result does not depend on order.
func GenUuidFromStrings(parts ...string) uuid.UUID {
	if len(parts) == 0 {
		return uuid.Nil
	}

	sorted := make([]string, len(parts))
	copy(sorted, parts)
	sort.Strings(sorted)

	sum := md5.Sum([]byte(strings.Join(sorted, "")))
	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80
	return uuid.FromBytesOrNil(sum[:])
}
