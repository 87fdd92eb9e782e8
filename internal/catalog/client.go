package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/linemk/cart-shop/internal/config"
	"github.com/linemk/cart-shop/internal/domain/apperr"
	"github.com/linemk/cart-shop/internal/domain/models"
	"github.com/linemk/cart-shop/internal/lib/logger"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// errUpstreamNotFound 404 от API каталога. Для breaker это не сбой
var errUpstreamNotFound = errors.New("catalog api: not found")

// errCallerDone запрос прерван контекстом вызывающего. Upstream при этом исправен, breaker его не считает сбоем
var errCallerDone = errors.New("catalog api: caller context done")

// Client HTTP клиент API каталога (GET-only) с circuit breaker
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	log        *slog.Logger
}

func NewClient(log *slog.Logger, cfg config.CatalogConfig) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "catalog-api",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.Breaker.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.Breaker.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errUpstreamNotFound) || errors.Is(err, errCallerDone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return c
}

type listResponse struct {
	Products []rawProduct `json:"products"`
	Total    int          `json:"total"`
}

// rawProduct форма товара во внешнем API
type rawProduct struct {
	ID                   int64           `json:"id"`
	SKU                  string          `json:"sku"`
	Title                string          `json:"title"`
	Brand                string          `json:"brand"`
	Thumbnail            string          `json:"thumbnail"`
	Price                decimal.Decimal `json:"price"`
	DiscountPercentage   decimal.Decimal `json:"discountPercentage"`
	Stock                int             `json:"stock"`
	Category             string          `json:"category"`
	Rating               float64         `json:"rating"`
	MinimumOrderQuantity *int            `json:"minimumOrderQuantity"`

	Description         string   `json:"description"`
	Images              []string `json:"images"`
	WarrantyInformation string   `json:"warrantyInformation"`
	ShippingInformation string   `json:"shippingInformation"`
	ReturnPolicy        string   `json:"returnPolicy"`
	AvailabilityStatus  string   `json:"availabilityStatus"`
	Meta                struct {
		Barcode string `json:"barcode"`
	} `json:"meta"`
	Reviews []struct {
		Rating       int    `json:"rating"`
		Comment      string `json:"comment"`
		Date         string `json:"date"`
		ReviewerName string `json:"reviewerName"`
	} `json:"reviews"`
}

func (r rawProduct) toModel(withDetail bool) *models.ExternalProduct {
	minQty := 1
	if r.MinimumOrderQuantity != nil && *r.MinimumOrderQuantity > 1 {
		minQty = *r.MinimumOrderQuantity
	}

	p := &models.ExternalProduct{
		ID:                   r.ID,
		SKU:                  r.SKU,
		Title:                r.Title,
		Brand:                r.Brand,
		Thumbnail:            r.Thumbnail,
		Price:                r.Price,
		DiscountPercentage:   r.DiscountPercentage,
		OriginalPrice:        models.OriginalPrice(r.Price, r.DiscountPercentage),
		Stock:                r.Stock,
		Category:             r.Category,
		Rating:               r.Rating,
		MinimumOrderQuantity: minQty,
	}
	if !withDetail {
		return p
	}

	reviews := make([]models.Review, 0, len(r.Reviews))
	for _, rv := range r.Reviews {
		reviews = append(reviews, models.Review{
			Rating:       rv.Rating,
			Comment:      rv.Comment,
			Date:         rv.Date,
			ReviewerName: rv.ReviewerName,
		})
	}
	images := r.Images
	if images == nil {
		images = []string{}
	}
	p.Detail = &models.ProductDetail{
		Description:         r.Description,
		Images:              images,
		WarrantyInformation: r.WarrantyInformation,
		ShippingInformation: r.ShippingInformation,
		ReturnPolicy:        r.ReturnPolicy,
		AvailabilityStatus:  r.AvailabilityStatus,
		Barcode:             r.Meta.Barcode,
		Reviews:             reviews,
	}
	return p
}

// FetchAll забирает весь каталог одним запросом (limit=0)
func (c *Client) FetchAll(ctx context.Context) ([]*models.ExternalProduct, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, apperr.ExternalAPI("invalid catalog base url")
	}
	q := u.Query()
	q.Set("limit", "0")
	q.Set("skip", "0")
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		if errors.Is(err, errUpstreamNotFound) {
			return nil, apperr.ExternalAPI("HTTP 404 at " + u.String())
		}
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Error("failed to decode catalog listing", logger.Err(err))
		return nil, apperr.ExternalAPI("malformed catalog listing")
	}

	products := make([]*models.ExternalProduct, 0, len(resp.Products))
	for _, raw := range resp.Products {
		products = append(products, raw.toModel(false))
	}
	return products, nil
}

// FetchByID детальный запрос одного товара. 404 превращается в ProductNotFound
func (c *Client) FetchByID(ctx context.Context, id int64) (*models.ExternalProduct, error) {
	u := c.baseURL + "/" + strconv.FormatInt(id, 10)

	body, err := c.get(ctx, u)
	if err != nil {
		if errors.Is(err, errUpstreamNotFound) {
			return nil, apperr.ProductNotFound(id)
		}
		return nil, err
	}

	var raw rawProduct
	if err := json.Unmarshal(body, &raw); err != nil {
		c.log.Error("failed to decode catalog product", slog.Int64("product_id", id), logger.Err(err))
		return nil, apperr.ExternalAPI("malformed catalog product")
	}
	return raw.toModel(true), nil
}

// get возвращает тело ответа, errUpstreamNotFound или apperr.ExternalAPI
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, callerErr(ctx, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, errUpstreamNotFound
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &statusError{code: resp.StatusCode, url: u}
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, callerErr(ctx, err)
		}
		return body, nil
	})
	if err == nil {
		return body, nil
	}

	var se *statusError
	switch {
	case errors.Is(err, errUpstreamNotFound):
		return nil, err
	case errors.Is(err, errCallerDone):
		c.log.Warn("catalog api call abandoned by caller", slog.String("url", u), logger.Err(err))
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.log.Warn("catalog api call rejected by circuit breaker", slog.String("url", u))
		return nil, apperr.ExternalAPI("catalog api temporarily unavailable")
	case errors.As(err, &se):
		c.log.Error("catalog api error", slog.String("url", u), slog.Int("status", se.code))
		return nil, apperr.ExternalAPI(se.Error())
	default:
		c.log.Error("catalog api connection failed", slog.String("url", u), logger.Err(err))
		return nil, apperr.ExternalAPI("timed out connecting to catalog api")
	}
}

// callerErr отделяет отмену или дедлайн вызывающего от сбоя upstream
func callerErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", errCallerDone, ctxErr)
	}
	return err
}

type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d at %s", e.code, e.url)
}
