package dashboard

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startGRPC(t *testing.T) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, _ := testDashboard(t, nil).NewGRPCServer()
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})
	return conn
}

func callRecommend(t *testing.T, conn *grpc.ClientConn, req map[string]any) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(req)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out := new(structpb.Struct)
	err = conn.Invoke(ctx, RecommendMethod, in, out)
	return out, err
}

func TestGRPC_Recommend(t *testing.T) {
	conn := startGRPC(t)
	out, err := callRecommend(t, conn, map[string]any{
		"moisture": "30.0", "temperature": 25.0, "ec": 300.0, "ph": 6.5,
		"n": 50.0, "p": 20.0, "k": "80",
	})
	require.NoError(t, err)

	got := out.AsMap()
	assert.Equal(t, "DAP", got["fertilizer"])
	assert.Equal(t, "75.1 kg/ha", got["rate_text"])
	assert.Equal(t, "#e74c3c", got["color"])
	assert.InDelta(t, 75.125, got["rate_kg_ha"], 1e-9)
	assert.Len(t, got["importances"], 7)
	require.Len(t, got["summary"], 7)
	first := got["summary"].([]any)[0].(map[string]any)
	assert.Equal(t, "Moisture", first["parameter"])
	assert.Equal(t, "%", first["unit"])
}

func TestGRPC_InvalidArgument(t *testing.T) {
	conn := startGRPC(t)
	_, err := callRecommend(t, conn, map[string]any{
		"moisture": "abc", "temperature": 25.0, "ec": 300.0, "ph": 6.5,
		"n": 50.0, "p": 50.0, "k": 50.0,
	})
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "Please enter valid numbers in all fields", st.Message())
}

func TestGRPC_Health(t *testing.T) {
	conn := startGRPC(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: RecommenderService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
