package handler

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/gift-market/internal/core/domain"
	"github.com/rl1809/gift-market/internal/core/service"
	"github.com/rl1809/gift-market/internal/logger"
	"github.com/rl1809/gift-market/internal/port"
)

const (
	metadataRequestID = "x-request-id"
	metadataUserID    = "x-user-id"
)

type GRPCOptions struct {
	Dedup    port.DedupRepository
	Artwork  port.ArtworkStorage
	Logger   *logger.Logger
	AdminIDs []int64
}

type GRPCHandler struct {
	market   *service.MarketService
	guard    *purchaseGuard
	artwork  port.ArtworkStorage
	log      *logger.Logger
	adminIDs map[int64]struct{}
}

func NewGRPCHandler(market *service.MarketService, opts GRPCOptions) *GRPCHandler {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	admins := make(map[int64]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = struct{}{}
	}
	return &GRPCHandler{
		market:   market,
		guard:    &purchaseGuard{market: market, dedup: opts.Dedup, log: opts.Logger},
		artwork:  opts.Artwork,
		log:      opts.Logger,
		adminIDs: admins,
	}
}

func (h *GRPCHandler) EnsureUser(ctx context.Context, req *EnsureUserRequest) (*domain.User, error) {
	if err := validateStruct(req); err != nil {
		return nil, toStatus(err)
	}

	user, err := h.market.EnsureUser(ctx, domain.UserID(req.UserID))
	if err != nil {
		return nil, toStatus(err)
	}
	return &user, nil
}

func (h *GRPCHandler) GetProfile(ctx context.Context, req *GetProfileRequest) (*domain.UserProfile, error) {
	if err := validateStruct(req); err != nil {
		return nil, toStatus(err)
	}

	profile, err := h.market.GetProfile(ctx, domain.UserID(req.UserID))
	if err != nil {
		return nil, toStatus(err)
	}
	return profile, nil
}

func (h *GRPCHandler) ListItems(ctx context.Context, _ *ListItemsRequest) (*ListItemsResponse, error) {
	items, err := h.market.ListItems(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListItemsResponse{Items: items}, nil
}

// AddItem requires the caller id in the x-user-id metadata to be an admin.
func (h *GRPCHandler) AddItem(ctx context.Context, req *AddItemRequest) (*AddItemResponse, error) {
	callerID, err := h.callerID(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := h.adminIDs[callerID]; !ok {
		return nil, status.Error(codes.PermissionDenied, "access denied")
	}
	ctx = h.log.WithUserID(ctx, callerID)

	item := domain.NewItem{Name: req.Name, Price: req.Price, Stock: req.Stock}
	if err := item.Validate(); err != nil {
		return nil, toStatus(err)
	}
	if err := validateStruct(req); err != nil {
		return nil, toStatus(err)
	}

	ref, err := h.artwork.Save(ctx, req.ArtworkName, bytes.NewReader(req.Artwork))
	if err != nil {
		if !domain.IsRejection(err) {
			h.log.Error(ctx, "failed to store artwork", err)
		}
		return nil, toStatus(err)
	}
	item.ArtworkRef = ref

	id, err := h.market.AddItem(ctx, item)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AddItemResponse{ItemID: id, ArtworkRef: ref}, nil
}

func (h *GRPCHandler) Purchase(ctx context.Context, req *PurchaseRequest) (*domain.PurchaseResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, toStatus(err)
	}

	result, err := h.guard.purchase(ctx, req.RequestID, domain.UserID(req.UserID), domain.ItemID(req.ItemID))
	if err != nil {
		return nil, toStatus(err)
	}
	return result, nil
}

func (h *GRPCHandler) callerID(ctx context.Context) (int64, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(metadataUserID)
	if len(values) == 0 {
		return 0, status.Error(codes.Unauthenticated, "caller id required")
	}
	id, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return 0, status.Error(codes.Unauthenticated, "caller id must be numeric")
	}
	return id, nil
}

// UnaryLogging attaches a request id to the context and logs every call.
func UnaryLogging(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := uuid.NewString()
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(metadataRequestID); len(values) > 0 && values[0] != "" {
				requestID = values[0]
			}
		}
		ctx = log.WithRequestID(ctx, requestID)

		start := time.Now()
		resp, err := handler(ctx, req)

		logCtx := log.WithFields(ctx, map[string]any{
			"method":      info.FullMethod,
			"code":        status.Code(err).String(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if status.Code(err) == codes.Unavailable || status.Code(err) == codes.Internal {
			log.Warn(logCtx, "rpc failed")
		} else {
			log.Debug(logCtx, "rpc served")
		}
		return resp, err
	}
}

// toStatus maps domain errors to gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrItemNotFound):
		return status.Error(codes.NotFound, "item not found")
	case errors.Is(err, domain.ErrOutOfStock):
		return status.Error(codes.FailedPrecondition, "sold out")
	case errors.Is(err, domain.ErrInsufficientBalance):
		return status.Error(codes.FailedPrecondition, "insufficient balance")
	case errors.Is(err, domain.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, "duplicate request")
	case errors.Is(err, domain.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "service temporarily unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

var _ MarketServer = (*GRPCHandler)(nil)
