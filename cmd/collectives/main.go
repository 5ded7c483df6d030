// Command collectives is an N-rank demo exercising Barrier, Bcast, and Reduce over
// the binary tree topology.
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

func main() {
	if err := mesh.Bootstrap(); err != nil {
		cos.ExitLogf("collectives: bootstrap: %v", err)
	}
	deadlockDetection, _ := strconv.ParseBool(os.Getenv("RANKMESH_DEADLOCK_DETECTION"))
	compression, _ := strconv.ParseBool(os.Getenv("RANKMESH_COMPRESSION"))
	rt, err := mesh.InitFromEnv(deadlockDetection, compression, prometheus.DefaultRegisterer)
	if err != nil {
		cos.ExitLogf("collectives: init: %v", err)
	}
	nlog.SetTag(cos.HashRankTag(rt.Rank(), rt.Size()))

	const root = 0

	if rc := rt.Barrier(); rc != mesh.Success {
		cos.ExitLogf("collectives: barrier: %s", rc)
	}
	nlog.Infof("collectives: rank %d: barrier cleared", rt.Rank())

	payload := make([]byte, 4)
	if rt.Rank() == root {
		copy(payload, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	}
	if rc := rt.Bcast(root, payload); rc != mesh.Success {
		cos.ExitLogf("collectives: bcast: %s", rc)
	}
	nlog.Infof("collectives: rank %d: bcast got %x", rt.Rank(), payload)

	contribution := []byte{byte(rt.Rank() + 1)}
	sum := make([]byte, 1)
	if rc := rt.Reduce(root, contribution, sum, mesh.OpSum); rc != mesh.Success {
		cos.ExitLogf("collectives: reduce: %s", rc)
	}
	if rt.Rank() == root {
		nlog.Infof("collectives: root: sum of ranks+1 (mod 256) = %d", sum[0])
	}

	if err := rt.Finalize(); err != nil {
		cos.ExitLogf("collectives: finalize: %v", err)
	}
}
