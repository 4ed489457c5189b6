package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/confcheck/cmd/conference/server"
)

func TestServeFlags(t *testing.T) {
	root := newRootCmd()
	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)

	require.NoError(t, serve.ParseFlags([]string{
		"--addr", ":9000",
		"--keyframe-interval", "2s",
		"--udp-port-min", "50000",
		"--udp-port-max", "50100",
		"--public-ip", "203.0.113.7",
		"--include-loopback=false",
	}))
	f := serve.Flags()
	addr, _ := f.GetString("addr")
	assert.Equal(t, ":9000", addr)
	interval, _ := f.GetDuration("keyframe-interval")
	assert.Equal(t, 2*time.Second, interval)
	spacing, _ := f.GetDuration("keyframe-spacing")
	assert.Equal(t, server.DefaultConfig().KeyframeSpacing, spacing)
	lo, _ := f.GetUint16("udp-port-min")
	hi, _ := f.GetUint16("udp-port-max")
	assert.Equal(t, uint16(50000), lo)
	assert.Equal(t, uint16(50100), hi)
	loopback, _ := f.GetBool("include-loopback")
	assert.False(t, loopback)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestServeUntilCancelled(t *testing.T) {
	opts := serveOptions{cfg: server.DefaultConfig()}
	opts.cfg.Addr = freeAddr(t)
	opts.cfg.Logger = newLogger("error")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, opts) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + opts.cfg.Addr + "/viewer")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServeInvalidConfig(t *testing.T) {
	opts := serveOptions{cfg: server.DefaultConfig()}
	opts.cfg.PublicIP = "nope"
	opts.cfg.Logger = newLogger("error")
	assert.Error(t, serve(context.Background(), opts))
}
