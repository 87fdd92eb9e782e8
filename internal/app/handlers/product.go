package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/cart-shop/internal/catalog"
	"github.com/linemk/cart-shop/internal/domain/models"
	"github.com/linemk/cart-shop/internal/service"
)

const defaultPerPage = 12

// ProductListParams параметры строки запроса GET /api/products
type ProductListParams struct {
	PerPage   int    `json:"per_page" validate:"min=1,max=100"`
	Page      int    `json:"page" validate:"min=1,max=10000"`
	SortPrice string `json:"sort_price" validate:"omitempty,oneof=asc desc"`
	Search    string `json:"search" validate:"max=100"`
}

type ProductResponse struct {
	ID                   int64                 `json:"id"`
	SKU                  string                `json:"sku"`
	Title                string                `json:"title"`
	Brand                string                `json:"brand"`
	Thumbnail            string                `json:"thumbnail"`
	Price                float64               `json:"price"`
	DiscountPercentage   float64               `json:"discount_percentage"`
	OriginalPrice        float64               `json:"original_price"`
	Stock                int                   `json:"stock"`
	Category             string                `json:"category"`
	Rating               float64               `json:"rating"`
	MinimumOrderQuantity int                   `json:"minimum_order_quantity"`
	Detail               *models.ProductDetail `json:"detail,omitempty"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Meta     service.PageMeta  `json:"meta"`
}

func NewProductResponse(p *models.ExternalProduct) ProductResponse {
	return ProductResponse{
		ID:                   p.ID,
		SKU:                  p.SKU,
		Title:                p.Title,
		Brand:                p.Brand,
		Thumbnail:            p.Thumbnail,
		Price:                p.Price.InexactFloat64(),
		DiscountPercentage:   p.DiscountPercentage.InexactFloat64(),
		OriginalPrice:        p.OriginalPrice.InexactFloat64(),
		Stock:                p.Stock,
		Category:             p.Category,
		Rating:               p.Rating,
		MinimumOrderQuantity: p.MinimumOrderQuantity,
		Detail:               p.Detail,
	}
}

// ListProductsHandler GET /api/products
func ListProductsHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListProductsHandler"
		logger := log.With(slog.String("op", op))

		params, err := parseListParams(r)
		if err != nil {
			badRequest(logger, w, "invalid query parameters", err)
			return
		}
		if err := validate.Struct(params); err != nil {
			writeError(logger, w, err)
			return
		}

		page, err := productService.List(r.Context(), service.ProductListQuery{
			Page:    params.Page,
			PerPage: params.PerPage,
			Sort:    catalog.ParseSortDirection(params.SortPrice),
			Search:  params.Search,
		})
		if err != nil {
			writeError(logger, w, err)
			return
		}

		resp := ProductListResponse{
			Products: make([]ProductResponse, 0, len(page.Products)),
			Meta:     page.Meta,
		}
		for _, p := range page.Products {
			resp.Products = append(resp.Products, NewProductResponse(p))
		}
		writeOK(logger, w, http.StatusOK, "Products retrieved", resp)
	}
}

// GetProductHandler GET /api/products/{id}
func GetProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetProductHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id < 1 {
			badRequest(logger, w, "invalid product id", err)
			return
		}

		p, err := productService.Get(r.Context(), id)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeOK(logger, w, http.StatusOK, "Product retrieved", NewProductResponse(p))
	}
}

func parseListParams(r *http.Request) (ProductListParams, error) {
	q := r.URL.Query()
	params := ProductListParams{
		PerPage:   defaultPerPage,
		Page:      1,
		SortPrice: q.Get("sort_price"),
		Search:    q.Get("search"),
	}

	var err error
	if v := q.Get("per_page"); v != "" {
		if params.PerPage, err = strconv.Atoi(v); err != nil {
			return params, err
		}
	}
	if v := q.Get("page"); v != "" {
		if params.Page, err = strconv.Atoi(v); err != nil {
			return params, err
		}
	}
	return params, nil
}
