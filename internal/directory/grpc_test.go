package directory

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func startBufconnServer(t *testing.T, impl Client) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	RegisterServer(server, impl)

	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(server.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}

	conn, err := grpc.Dial("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestGRPCRoundTripRegisterHeartbeatDeregister(t *testing.T) {
	svc := NewService(time.Second)
	conn := startBufconnServer(t, svc)
	client := NewGRPCClient(conn)

	id := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Register(ctx, "worker", id, map[string]string{"v": "1"}))
	require.NoError(t, client.Heartbeat(ctx, "worker", id))
	require.NoError(t, client.Deregister(ctx, "worker", id))

	require.Empty(t, svc.Live())
}
