// Optional remainder compression: purely a transport-level optimization for the
// out-of-line remainder bytes of large payloads, transparent to Encode/Decode's
// (tag, size) semantics. Both ends of a connection must agree to enable it.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"io"

	"github.com/pierrec/lz4/v3"
	"github.com/pkg/errors"
)

// CompressRemainder writes b to w as a single lz4 frame. The frame's own end marker
// lets a reader decompress exactly the bytes written without an extra length prefix.
func CompressRemainder(w io.Writer, b []byte) error {
	zw := lz4.NewWriter(w)
	if _, err := zw.Write(b); err != nil {
		return errors.Wrap(err, "wire: lz4 compress remainder")
	}
	return errors.Wrap(zw.Close(), "wire: lz4 close frame")
}

// DecompressRemainder reads exactly len(out) decompressed bytes from r's next lz4
// frame into out.
func DecompressRemainder(r io.Reader, out []byte) error {
	zr := lz4.NewReader(r)
	_, err := io.ReadFull(zr, out)
	return errors.Wrap(err, "wire: lz4 decompress remainder")
}
