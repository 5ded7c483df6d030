// Command pingpong is a two-rank demo exercising point-to-point Send/Recv: rank 0
// and rank 1 exchange a fixed number of messages (rank 1 replies to each with the
// value plus one), then both finalize. Deadlock detection follows
// RANKMESH_DEADLOCK_DETECTION; the demo never sets up a mutual wait of its own.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"os"
	"strconv"

	"github.com/NVIDIA/rankmesh/cmn/cos"
	"github.com/NVIDIA/rankmesh/cmn/nlog"
	"github.com/NVIDIA/rankmesh/mesh"
	"github.com/prometheus/client_golang/prometheus"
)

const rounds = 8

func main() {
	if err := mesh.Bootstrap(); err != nil {
		cos.ExitLogf("pingpong: bootstrap: %v", err)
	}
	deadlockDetection, _ := strconv.ParseBool(os.Getenv("RANKMESH_DEADLOCK_DETECTION"))
	compression, _ := strconv.ParseBool(os.Getenv("RANKMESH_COMPRESSION"))
	rt, err := mesh.InitFromEnv(deadlockDetection, compression, prometheus.DefaultRegisterer)
	if err != nil {
		cos.ExitLogf("pingpong: init: %v", err)
	}
	nlog.SetTag(cos.HashRankTag(rt.Rank(), rt.Size()))

	if rt.Size() != 2 {
		cos.ExitLogf("pingpong: requires exactly 2 ranks, got %d", rt.Size())
	}
	peer := 1 - rt.Rank()

	for i := 0; i < rounds; i++ {
		if rt.Rank() == 0 {
			payload := []byte{byte(i)}
			if rc := rt.Send(peer, 1, payload); rc != mesh.Success {
				cos.ExitLogf("pingpong: send round %d: %s", i, rc)
			}
			buf := make([]byte, 1)
			if rc := rt.Recv(peer, 1, buf); rc != mesh.Success {
				cos.ExitLogf("pingpong: recv round %d: %s", i, rc)
			}
			nlog.Infof("pingpong: rank 0 round %d: got %d", i, buf[0])
		} else {
			buf := make([]byte, 1)
			if rc := rt.Recv(peer, 1, buf); rc != mesh.Success {
				cos.ExitLogf("pingpong: recv round %d: %s", i, rc)
			}
			reply := []byte{buf[0] + 1}
			if rc := rt.Send(peer, 1, reply); rc != mesh.Success {
				cos.ExitLogf("pingpong: send round %d: %s", i, rc)
			}
		}
	}

	if err := rt.Finalize(); err != nil {
		cos.ExitLogf("pingpong: finalize: %v", err)
	}
}
