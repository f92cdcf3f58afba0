package schema

import (
	"strconv"

	"github.com/shashiranjanraj/qcache/querycache/digest"
)

func digestParts(parts []string) uint32 {
	return digest.OfParts(parts...)
}

func uint32ToHex(v uint32) string {
	return strconv.FormatUint(uint64(v), 16)
}
