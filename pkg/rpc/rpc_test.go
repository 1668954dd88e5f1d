package rpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/HatiCode/gradecast/pkg/api"
	"github.com/HatiCode/gradecast/pkg/artifacts/artifactstest"
	"github.com/HatiCode/gradecast/pkg/predictor"
)

func startServer(t *testing.T) *Client {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := predictor.New(artifactstest.Store(t), predictor.DefaultOptions(), nil, logger)

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(svc, nil, logger)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := Dial("passthrough:///bufnet", nil,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClient_Predict(t *testing.T) {
	client := startServer(t)

	resp, err := client.Predict(context.Background(), api.PredictRequest{
		CurrentQuarter: 2,
		Section:        "BANABA",
		Gender:         "FEMALE",
		Q1:             api.Pct(85),
		Q2:             api.Pct(90),
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.CurrentQuarter)
	assert.Equal(t, map[string]float64{"Q1": 85, "Q2": 90}, resp.EnteredGrades)
	assert.Contains(t, resp.PredictedGrades, "Q3")
	assert.Contains(t, resp.PredictedGrades, "Q4")
	require.NotNil(t, resp.FinalGrade)
	assert.Equal(t, 85, resp.FinalGrade.Confidence)
	require.NotNil(t, resp.Comparison)
	assert.Equal(t, "Above Average", resp.Comparison.Percentile)
}

func TestClient_Predict_InvalidArgument(t *testing.T) {
	client := startServer(t)

	_, err := client.Predict(context.Background(), api.PredictRequest{
		CurrentQuarter: 1,
		Section:        "BANABA",
		Gender:         "FEMALE",
	})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_Predict_StringGrades(t *testing.T) {
	conn := startServer(t).conn

	in, err := structpb.NewStruct(map[string]any{
		"currentQuarter": 3,
		"section":        "GEMELINA",
		"gender":         "MALE",
		"q1":             "80",
		"q2":             "82.5",
		"q3":             "85",
		"q4":             "",
	})
	require.NoError(t, err)

	out := new(structpb.Struct)
	require.NoError(t, conn.Invoke(context.Background(), predictMethod, in, out))

	assert.True(t, out.Fields["success"].GetBoolValue())
	final := out.Fields["finalGrade"].GetStructValue()
	require.NotNil(t, final)
	assert.Equal(t, float64(95), final.Fields["confidence"].GetNumberValue())
}

func TestServer_Predict_Malformed(t *testing.T) {
	conn := startServer(t).conn

	in, err := structpb.NewStruct(map[string]any{
		"currentQuarter": "two",
		"section":        "BANABA",
		"gender":         "MALE",
	})
	require.NoError(t, err)

	err = conn.Invoke(context.Background(), predictMethod, in, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_Predict_NonFiniteGrade(t *testing.T) {
	conn := startServer(t).conn

	for _, grade := range []string{"NaN", "nan", "Inf"} {
		in, err := structpb.NewStruct(map[string]any{
			"currentQuarter": 4,
			"section":        "BANABA",
			"gender":         "MALE",
			"q1":             grade,
			"q2":             "90",
			"q3":             "90",
			"q4":             "90",
		})
		require.NoError(t, err)

		err = conn.Invoke(context.Background(), predictMethod, in, new(structpb.Struct))
		assert.Equal(t, codes.InvalidArgument, status.Code(err), "grade %q", grade)
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	intercept := recoveryInterceptor(slog.New(slog.NewTextHandler(io.Discard, nil)))
	info := &grpc.UnaryServerInfo{FullMethod: predictMethod}

	resp, err := intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("kaboom")
	})
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))

	resp, err = intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestHealthService(t *testing.T) {
	conn := startServer(t).conn
	hc := grpc_health_v1.NewHealthClient(conn)

	resp, err := hc.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}
