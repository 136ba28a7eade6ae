package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rl1809/gift-market/internal/core/domain"
	"github.com/rl1809/gift-market/internal/core/service"
	"github.com/rl1809/gift-market/internal/logger"
	"github.com/rl1809/gift-market/internal/port"
)

const (
	multipartMemory   = 8 << 20
	multipartOverhead = 1 << 20
)

type HTTPOptions struct {
	Dedup          port.DedupRepository
	Artwork        port.ArtworkStorage
	Logger         *logger.Logger
	MaxUploadBytes int64
}

type HTTPHandler struct {
	market    *service.MarketService
	guard     *purchaseGuard
	artwork   port.ArtworkStorage
	log       *logger.Logger
	maxUpload int64
}

type PurchaseHTTPRequest struct {
	RequestID string `json:"request_id" validate:"omitempty,max=128"`
	UserID    int64  `json:"user_id" validate:"required,gt=0"`
	ItemID    int64  `json:"item_id"`
}

type AddItemHTTPResponse struct {
	ItemID     domain.ItemID `json:"item_id"`
	ArtworkRef string        `json:"artwork_ref"`
}

func NewHTTPHandler(market *service.MarketService, opts HTTPOptions) *HTTPHandler {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &HTTPHandler{
		market:    market,
		guard:     &purchaseGuard{market: market, dedup: opts.Dedup, log: opts.Logger},
		artwork:   opts.Artwork,
		log:       opts.Logger,
		maxUpload: opts.MaxUploadBytes,
	}
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) EnsureUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.market.EnsureUser(r.Context(), domain.UserID(userID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, user)
}

func (h *HTTPHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.market.GetProfile(r.Context(), domain.UserID(userID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, profile)
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.market.ListItems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, items)
}

func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		writeError(w, err)
		return
	}

	item, err := h.market.GetItem(r.Context(), domain.ItemID(itemID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, item)
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseHTTPRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.guard.purchase(r.Context(), req.RequestID, domain.UserID(req.UserID), domain.ItemID(req.ItemID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, result)
}

// uploadLimit bounds an AddItem body; zero means unbounded.
func (h *HTTPHandler) uploadLimit() int64 {
	if h.maxUpload <= 0 {
		return 0
	}
	return h.maxUpload + multipartOverhead
}

// AddItem accepts a multipart form with name, price, stock and the artwork
// file. The artwork is stored before the catalog row is inserted.
func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	if limit := h.uploadLimit(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, domain.InvalidField("body", "must be a multipart form within the upload limit"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	item, err := parseNewItem(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := item.Validate(); err != nil {
		writeError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, domain.InvalidField("file", "is required"))
		return
	}
	defer file.Close()

	ctx := r.Context()
	if callerID, ok := ctx.Value(callerKey).(int64); ok {
		ctx = h.log.WithUserID(ctx, callerID)
	}

	ref, err := h.artwork.Save(ctx, header.Filename, file)
	if err != nil {
		if !domain.IsRejection(err) {
			h.log.Error(ctx, "failed to store artwork", err)
		}
		writeError(w, err)
		return
	}
	item.ArtworkRef = ref

	id, err := h.market.AddItem(ctx, item)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, AddItemHTTPResponse{ItemID: id, ArtworkRef: ref})
}

func parseNewItem(r *http.Request) (domain.NewItem, error) {
	var fields []domain.FieldError
	parseInt := func(name string) int64 {
		raw := strings.TrimSpace(r.FormValue(name))
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fields = append(fields, domain.FieldError{Field: name, Message: "must be an integer"})
		}
		return v
	}

	item := domain.NewItem{
		Name:  r.FormValue("name"),
		Price: parseInt("price"),
		Stock: parseInt("stock"),
	}
	if len(fields) > 0 {
		return item, &domain.ValidationError{Fields: fields}
	}
	return item, nil
}

func pathID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.InvalidField(param, "must be an integer")
	}
	return id, nil
}
