package rpc

import (
	"context"
	"net/rpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/roomserver/models"
)

type mockStats struct {
	stats models.Stats
}

func (m mockStats) Stats() models.Stats {
	return m.stats
}

func TestStatsService(t *testing.T) {
	want := models.Stats{PlayerCount: 3, ConnectedPlayers: 2, RoomCount: 1, ClientCount: 2}
	srv, err := NewServer("127.0.0.1:0", mockStats{stats: want})
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()

	client, err := rpc.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer client.Close()

	var reply GetStatsReply
	require.NoError(t, client.Call("StatsService.GetStats", &GetStatsArgs{}, &reply))
	assert.Equal(t, want, reply.Stats)

	srv.Stop()
	srv.Stop()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestHealthServer(t *testing.T) {
	h, err := NewHealthServer("127.0.0.1:0")
	require.NoError(t, err)
	go h.Serve()
	defer h.Stop()

	conn, err := grpc.NewClient(h.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(""))

	h.SetServing(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(HealthService))

	h.SetServing(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(HealthService))
}
