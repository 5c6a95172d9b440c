package service

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/purchase-export/config"
	"github.com/purchase-export/server"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.DownloadPath = t.TempDir()
	cfg.WSAddr = ""
	cfg.Pacing.PreClickMin, cfg.Pacing.PreClickMax = 0, 0
	cfg.Pacing.PostLoadMin, cfg.Pacing.PostLoadMax = 0, 0
	return cfg
}

func TestProgramServesExports(t *testing.T) {
	fb := newFakeBrowser(t)
	cfg := testConfig(t)
	lis := bufconn.Listen(1 << 20)

	p := &Program{
		Config:      cfg,
		Logger:      zap.NewNop().Sugar(),
		Version:     "dev",
		NewDocument: func() LiveDocument { return fb },
		Listen:      func() (net.Listener, error) { return lis, nil },
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.ready = make(chan struct{})
	p.wg.Add(1)
	go p.run()

	select {
	case <-p.ready:
	case <-time.After(5 * time.Second):
		t.Fatalf("program did not start: %v", p.runErr)
	}

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	ctx := context.Background()
	req, err := structpb.NewStruct(map[string]any{"maxPurchases": 2})
	require.NoError(t, err)
	out := new(structpb.Struct)
	require.NoError(t, conn.Invoke(ctx, "/"+server.ServiceName+"/Export", req, out))
	assert.Equal(t, true, out.AsMap()["success"])
	assert.Equal(t, float64(4), out.AsMap()["processedCount"])
	assert.NotEmpty(t, out.AsMap()["path"])

	files := new(structpb.Struct)
	require.NoError(t, conn.Invoke(ctx, "/"+server.ServiceName+"/GetExports", &emptypb.Empty{}, files))
	assert.Len(t, files.AsMap()["files"], 1)

	require.NoError(t, conn.Close())
	require.NoError(t, p.Stop(nil))
	assert.NoError(t, p.runErr)
	_, _, closes := fb.calls()
	assert.Equal(t, 1, closes)
}

func TestBuildServiceArgs(t *testing.T) {
	cfg := testConfig(t)
	cfg.DownloadPath = "/var/lib/purchase-export"
	cfg.AutoUpdate = true
	cfg.UpdateInterval = 2 * time.Hour
	cfg.WSAddr = "127.0.0.1:9000"

	args := buildServiceArgs(&Program{Config: cfg, ConfigFile: "/etc/purchase-export.yaml"})
	assert.Equal(t, []string{
		"serve",
		"--config=/etc/purchase-export.yaml",
		"--grpc-port=50051",
		"--ws-addr=127.0.0.1:9000",
		"--download-path=/var/lib/purchase-export",
		"--headless=false",
		"--auto-update=true",
		"--update-interval=2h0m0s",
	}, args)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Unknown", StatusString(0))
}
