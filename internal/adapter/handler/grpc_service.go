package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/rl1809/gift-market/internal/core/domain"
)

// The market service is described by hand and carried as JSON; clients
// select the codec with grpc.CallContentSubtype(CodecName).
const (
	CodecName   = "json"
	ServiceName = "market.v1.Market"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type EnsureUserRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

type GetProfileRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

type ListItemsRequest struct{}

type ListItemsResponse struct {
	Items []domain.Item `json:"items"`
}

type AddItemRequest struct {
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Stock       int64  `json:"stock"`
	ArtworkName string `json:"artwork_name" validate:"required"`
	Artwork     []byte `json:"artwork" validate:"required"`
}

type AddItemResponse struct {
	ItemID     domain.ItemID `json:"item_id"`
	ArtworkRef string        `json:"artwork_ref"`
}

type PurchaseRequest struct {
	RequestID string `json:"request_id" validate:"omitempty,max=128"`
	UserID    int64  `json:"user_id" validate:"required,gt=0"`
	ItemID    int64  `json:"item_id"`
}

// MarketServer is implemented by GRPCHandler.
type MarketServer interface {
	EnsureUser(context.Context, *EnsureUserRequest) (*domain.User, error)
	GetProfile(context.Context, *GetProfileRequest) (*domain.UserProfile, error)
	ListItems(context.Context, *ListItemsRequest) (*ListItemsResponse, error)
	AddItem(context.Context, *AddItemRequest) (*AddItemResponse, error)
	Purchase(context.Context, *PurchaseRequest) (*domain.PurchaseResult, error)
}

func unaryHandler[Req, Resp any](method string, call func(MarketServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MarketServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MarketServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var MarketServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("EnsureUser", MarketServer.EnsureUser),
		unaryHandler("GetProfile", MarketServer.GetProfile),
		unaryHandler("ListItems", MarketServer.ListItems),
		unaryHandler("AddItem", MarketServer.AddItem),
		unaryHandler("Purchase", MarketServer.Purchase),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterMarketServer(s grpc.ServiceRegistrar, srv MarketServer) {
	s.RegisterService(&MarketServiceDesc, srv)
}

// MarketClient calls the market service over an established connection.
type MarketClient struct {
	cc grpc.ClientConnInterface
}

func NewMarketClient(cc grpc.ClientConnInterface) *MarketClient {
	return &MarketClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MarketClient) EnsureUser(ctx context.Context, in *EnsureUserRequest, opts ...grpc.CallOption) (*domain.User, error) {
	return invoke[domain.User](ctx, c.cc, "EnsureUser", in, opts)
}

func (c *MarketClient) GetProfile(ctx context.Context, in *GetProfileRequest, opts ...grpc.CallOption) (*domain.UserProfile, error) {
	return invoke[domain.UserProfile](ctx, c.cc, "GetProfile", in, opts)
}

func (c *MarketClient) ListItems(ctx context.Context, in *ListItemsRequest, opts ...grpc.CallOption) (*ListItemsResponse, error) {
	return invoke[ListItemsResponse](ctx, c.cc, "ListItems", in, opts)
}

func (c *MarketClient) AddItem(ctx context.Context, in *AddItemRequest, opts ...grpc.CallOption) (*AddItemResponse, error) {
	return invoke[AddItemResponse](ctx, c.cc, "AddItem", in, opts)
}

func (c *MarketClient) Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*domain.PurchaseResult, error) {
	return invoke[domain.PurchaseResult](ctx, c.cc, "Purchase", in, opts)
}
