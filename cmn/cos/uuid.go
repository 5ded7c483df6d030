// Package cos provides common low-level types and utilities for rankmesh.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

// Alphabet for generating session tags.
const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

const lenShortID = 9

var (
	sid  *shortid.Shortid
	rtie atomic.Uint32
)

func initShortID(seed uint64) {
	sid = shortid.MustNew(4 /*worker*/, uuidABC, seed)
}

// GenUUID returns a short, mostly-alphabetic session id, generated once per launcher
// invocation and exported to every rank so their log lines can be correlated.
func GenUUID() (uuid string) {
	if sid == nil {
		initShortID(uint64(time.Now().UnixNano()))
	}
	var h, t string
	uuid = sid.MustGenerate()
	if !isAlpha(uuid[0]) {
		tie := int(rtie.Add(1))
		h = string(rune('A' + tie%26))
	}
	c := uuid[len(uuid)-1]
	if c == '-' || c == '_' {
		tie := int(rtie.Add(1))
		t = string(rune('a' + tie%26))
	}
	return h + uuid + t
}

func IsValidUUID(uuid string) bool {
	return len(uuid) >= lenShortID && isAlphaNice(uuid)
}

// HashRankTag derives a short, deterministic per-rank correlation tag from the
// launcher-assigned (rank, size) pair: hash with xxhash, base-36 encode, strip a
// leading digit so the tag reads as an identifier.
func HashRankTag(rank, size int) string {
	s := strconv.Itoa(rank) + "/" + strconv.Itoa(size)
	digest := xxhash.Checksum64S([]byte(s), 0)
	tag := strconv.FormatUint(digest, 36)
	if tag[0] >= '0' && tag[0] <= '9' {
		tag = tag[1:]
	}
	if len(tag) > 6 {
		tag = tag[:6]
	}
	return tag
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlphaNice(s string) bool {
	const tooLong = 32
	l := len(s)
	if l > tooLong {
		return false
	}
	for i := range l {
		c := s[i]
		if isAlpha(c) || (c >= '0' && c <= '9') {
			continue
		}
		if c != '-' && c != '_' {
			return false
		}
		if i == 0 || i == l-1 {
			return false
		}
	}
	return true
}
