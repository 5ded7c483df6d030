// Bootstrap remaps the fds cmd/launcher actually managed to hand down (via
// os/exec's ExtraFiles, which only appends sequentially starting at fd 3) onto the
// well-known numbers InitFromEnv expects. This is one explicit, early, best-effort
// setup pass run before the real work starts, using golang.org/x/sys/unix.Dup2 since
// portable Go exec offers no pre-exec fd-placement hook of its own.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mesh

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// fdMapEnv names the env var cmd/launcher sets: a comma-separated list of
// "peer:readerFD:writerFD" triples describing where each peer's pipe ends landed
// after ExtraFiles inheritance.
const fdMapEnv = "RANKMESH_FDMAP"

// Bootstrap dups the inherited pipe fds named by RANKMESH_FDMAP onto
// ReaderBaseFD+peer / WriterBaseFD+peer, so InitFromEnv can open them at the
// well-known numbers regardless of where exec happened to place them. A no-op if
// RANKMESH_FDMAP is unset (e.g. when Init is called directly with explicit Conns,
// as in tests).
func Bootstrap() error {
	raw := os.Getenv(fdMapEnv)
	if raw == "" {
		return nil
	}
	for _, triple := range strings.Split(raw, ",") {
		parts := strings.Split(triple, ":")
		if len(parts) != 3 {
			return errors.Errorf("mesh: malformed %s entry %q", fdMapEnv, triple)
		}
		peer, err := strconv.Atoi(parts[0])
		if err != nil {
			return errors.Wrapf(err, "mesh: %s peer field %q", fdMapEnv, parts[0])
		}
		readerFD, err := strconv.Atoi(parts[1])
		if err != nil {
			return errors.Wrapf(err, "mesh: %s reader field %q", fdMapEnv, parts[1])
		}
		writerFD, err := strconv.Atoi(parts[2])
		if err != nil {
			return errors.Wrapf(err, "mesh: %s writer field %q", fdMapEnv, parts[2])
		}
		if err := unix.Dup2(readerFD, ReaderBaseFD+peer); err != nil {
			return errors.Wrapf(err, "mesh: dup2 reader fd for peer %d", peer)
		}
		if err := unix.Dup2(writerFD, WriterBaseFD+peer); err != nil {
			return errors.Wrapf(err, "mesh: dup2 writer fd for peer %d", peer)
		}
	}
	return nil
}
