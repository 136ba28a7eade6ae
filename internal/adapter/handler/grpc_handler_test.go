package handler

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/gift-market/internal/core/domain"
	"github.com/rl1809/gift-market/internal/logger"
)

func (e *testEnv) grpcClient(t *testing.T) *MarketClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryLogging(logger.Nop())))
	RegisterMarketServer(srv, NewGRPCHandler(e.market, GRPCOptions{
		Dedup:    e.dedup,
		Artwork:  e.artwork,
		AdminIDs: []int64{testAdminID},
	}))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewMarketClient(conn)
}

func asAdmin(ctx context.Context, id int64) context.Context {
	return metadata.AppendToOutgoingContext(ctx, metadataUserID, fmt.Sprint(id))
}

func TestGRPC_EnsureUserAndProfile(t *testing.T) {
	env := newTestEnv(t)
	client := env.grpcClient(t)
	ctx := context.Background()

	user, err := client.EnsureUser(ctx, &EnsureUserRequest{UserID: 7})
	require.NoError(t, err)
	assert.Equal(t, domain.User{ID: 7, Balance: testStartingBalance}, *user)

	profile, err := client.GetProfile(ctx, &GetProfileRequest{UserID: 7})
	require.NoError(t, err)
	assert.Equal(t, testStartingBalance, profile.User.Balance)
	assert.Empty(t, profile.Holdings)

	_, err = client.EnsureUser(ctx, &EnsureUserRequest{UserID: 0})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_AddItemAndPurchase(t *testing.T) {
	env := newTestEnv(t)
	client := env.grpcClient(t)
	ctx := context.Background()

	added, err := client.AddItem(asAdmin(ctx, testAdminID), &AddItemRequest{
		Name:        "Lunar Hare",
		Price:       500_000,
		Stock:       1,
		ArtworkName: "hare.tgs",
		Artwork:     []byte("sticker"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ArtworkRef)

	listed, err := client.ListItems(ctx, &ListItemsRequest{})
	require.NoError(t, err)
	require.Len(t, listed.Items, 1)
	assert.Equal(t, added.ItemID, listed.Items[0].ID)

	result, err := client.Purchase(ctx, &PurchaseRequest{RequestID: "r-1", UserID: 1, ItemID: int64(added.ItemID)})
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusCommitted, result.Status)
	assert.Equal(t, int64(1_500_000), result.Balance)
	assert.Equal(t, int64(0), result.Stock)

	_, err = client.Purchase(ctx, &PurchaseRequest{RequestID: "r-1", UserID: 1, ItemID: int64(added.ItemID)})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = client.Purchase(ctx, &PurchaseRequest{UserID: 2, ItemID: int64(added.ItemID)})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, "sold out", status.Convert(err).Message())

	_, err = client.Purchase(ctx, &PurchaseRequest{UserID: 2, ItemID: 404})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPC_AddItemRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	client := env.grpcClient(t)
	ctx := context.Background()
	req := &AddItemRequest{Name: "x", Price: 1, Stock: 1, ArtworkName: "x.tgs", Artwork: []byte("x")}

	_, err := client.AddItem(ctx, req)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.AddItem(asAdmin(ctx, 42), req)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = client.AddItem(asAdmin(ctx, testAdminID), &AddItemRequest{Name: "x", Price: 0, Stock: 1, ArtworkName: "x.tgs", Artwork: []byte("x")})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.AddItem(asAdmin(ctx, testAdminID), &AddItemRequest{Name: "x", Price: 1, Stock: 1, ArtworkName: "x.gif", Artwork: []byte("x")})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{domain.InvalidField("user_id", "must be positive"), codes.InvalidArgument},
		{domain.ErrItemNotFound, codes.NotFound},
		{domain.ErrOutOfStock, codes.FailedPrecondition},
		{&domain.InsufficientBalanceError{UserID: 1, Balance: 1, Price: 2}, codes.FailedPrecondition},
		{domain.ErrDuplicateRequest, codes.AlreadyExists},
		{domain.Unavailable("commit", fmt.Errorf("timeout")), codes.Unavailable},
		{fmt.Errorf("boom"), codes.Internal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, status.Code(toStatus(tt.err)), tt.err.Error())
	}
	assert.NoError(t, toStatus(nil))
}
