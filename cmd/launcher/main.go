// Command launcher is the external process that stands up a rankmesh group:
// forking SIZE copies of a program, wiring a full pipe mesh between them, and
// exporting each child's RANK/SIZE/RANKMESH_FDMAP. Flag parsing uses urfave/cli/v2.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/NVIDIA/rankmesh/cmn/config"
	"github.com/NVIDIA/rankmesh/cmn/cos"
	"github.com/NVIDIA/rankmesh/cmn/nlog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "launcher",
		Usage: "fork and wire a rankmesh group",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a launcher JSON config"},
			&cli.StringFlag{Name: "program", Usage: "program to run for every rank"},
			&cli.IntFlag{Name: "size", Usage: "group size", Value: 0},
			&cli.BoolFlag{Name: "deadlock-detection", Usage: "enable two-rank deadlock detection", Value: true},
			&cli.BoolFlag{Name: "compression", Usage: "enable optional remainder compression", Value: false},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		cos.ExitLogf("launcher: %v", err)
	}
}

func run(c *cli.Context) error {
	cfg, err := resolveConfig(c)
	if err != nil {
		return err
	}
	size := c.Int("size")
	if size < 2 {
		return errors.New("launcher: -size must be >= 2")
	}
	session := cos.GenUUID()
	nlog.SetTag(session)
	nlog.Infof("launcher: starting session %s: program=%q size=%d", session, cfg.Program, size)

	mesh, err := buildPipeMesh(size)
	if err != nil {
		return err
	}
	defer mesh.closeAll()

	cmds := make([]*exec.Cmd, size)
	for rank := 0; rank < size; rank++ {
		cmd, err := mesh.spawn(rank, size, cfg, session)
		if err != nil {
			return errors.Wrapf(err, "launcher: spawn rank %d", rank)
		}
		cmds[rank] = cmd
	}
	mesh.closeParentSideAfterSpawn()

	var errs cos.Errs
	for rank, cmd := range cmds {
		if err := cmd.Wait(); err != nil {
			errs.Add(errors.Wrapf(err, "launcher: rank %d exited with error", rank))
		}
	}
	if cnt, err := errs.JoinErr(); cnt > 0 {
		return err
	}
	nlog.Infof("launcher: session %s: all %d ranks exited cleanly", session, size)
	return nil
}

func resolveConfig(c *cli.Context) (*config.Launcher, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	program := c.String("program")
	if program == "" {
		return nil, errors.New("launcher: one of -config or -program is required")
	}
	return &config.Launcher{
		Program:           program,
		Args:              c.Args().Slice(),
		DeadlockDetection: c.Bool("deadlock-detection"),
		Compression:       c.Bool("compression"),
	}, nil
}

// pipeMesh holds both ends of every directed pipe between ranks; each end is shared
// between the parent (which must close its copy once the child has the fd) and
// exactly one child.
type pipeMesh struct {
	size int
	// readers[r][p] is rank r's read end of the pipe carrying data FROM peer p TO r.
	readers [][]*os.File
	// writers[r][p] is rank r's write end of the pipe carrying data FROM r TO peer p.
	writers [][]*os.File
}

func buildPipeMesh(size int) (*pipeMesh, error) {
	pm := &pipeMesh{
		size:    size,
		readers: make([][]*os.File, size),
		writers: make([][]*os.File, size),
	}
	for r := 0; r < size; r++ {
		pm.readers[r] = make([]*os.File, size)
		pm.writers[r] = make([]*os.File, size)
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if i == j {
				continue
			}
			// one directed pipe per ordered pair: i writes, j reads.
			r, w, err := os.Pipe()
			if err != nil {
				return nil, errors.Wrapf(err, "launcher: pipe(%d->%d)", i, j)
			}
			pm.readers[j][i] = r
			pm.writers[i][j] = w
		}
	}
	return pm, nil
}

// spawn execs cfg.Program for rank, handing it every fd it needs via ExtraFiles and
// telling it, through RANKMESH_FDMAP, which inherited fd is which peer's reader and
// writer (see mesh.Bootstrap).
func (pm *pipeMesh) spawn(rank, size int, cfg *config.Launcher, session string) (*exec.Cmd, error) {
	cmd := exec.Command(cfg.Program, cfg.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	var triples []string
	nextFD := 3 // ExtraFiles[0] always lands at fd 3 in the child
	for p := 0; p < size; p++ {
		if p == rank {
			continue
		}
		cmd.ExtraFiles = append(cmd.ExtraFiles, pm.readers[rank][p])
		readerFD := nextFD
		nextFD++
		cmd.ExtraFiles = append(cmd.ExtraFiles, pm.writers[rank][p])
		writerFD := nextFD
		nextFD++
		triples = append(triples, fmt.Sprintf("%d:%d:%d", p, readerFD, writerFD))
	}

	cmd.Env = append(os.Environ(),
		"RANK="+strconv.Itoa(rank),
		"SIZE="+strconv.Itoa(size),
		"RANKMESH_FDMAP="+strings.Join(triples, ","),
		"RANKMESH_SESSION="+session,
		"RANKMESH_DEADLOCK_DETECTION="+strconv.FormatBool(cfg.DeadlockDetection),
		"RANKMESH_COMPRESSION="+strconv.FormatBool(cfg.Compression),
	)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// closeParentSideAfterSpawn drops the launcher's own references to every fd now
// duplicated into a child, so pipe EOF behaves correctly once a child exits.
func (pm *pipeMesh) closeParentSideAfterSpawn() {
	for i := 0; i < pm.size; i++ {
		for j := 0; j < pm.size; j++ {
			if i == j {
				continue
			}
			pm.readers[j][i].Close()
			pm.writers[i][j].Close()
		}
	}
}

func (pm *pipeMesh) closeAll() {
	// best-effort: closeParentSideAfterSpawn already closed these on the success
	// path; this only matters if buildPipeMesh's caller bails out early.
	for i := 0; i < pm.size; i++ {
		for j := 0; j < pm.size; j++ {
			if i == j {
				continue
			}
			if pm.readers[j][i] != nil {
				pm.readers[j][i].Close()
			}
			if pm.writers[i][j] != nil {
				pm.writers[i][j].Close()
			}
		}
	}
}
