package theodds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/oddsdesk/oddsdesk/internal/config"
	"github.com/oddsdesk/oddsdesk/pkg/models"
)

// Client handles The Odds API requests for all cached data domains. Requests
// are rate limited client-side so a burst of cache refreshes cannot burn the
// provider quota.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	limiter    *rate.Limiter

	// First-observed price per (event, book, market, outcome), used to stamp
	// opening lines onto quotes for reverse-line-movement detection
	mu       sync.Mutex
	openings map[string]opening
}

type opening struct {
	price      int
	point      *float64
	eventStart time.Time
}

// New creates a new Odds API client
func New(cfg config.ProviderConfig) *Client {
	perSecond := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		apiKey:   cfg.APIKey,
		baseURL:  cfg.BaseURL,
		limiter:  rate.NewLimiter(perSecond, 3),
		openings: make(map[string]opening),
	}
}

// Fetch implements the cache fetcher contract. The key is the sport key
// (optionally sport:date for date-ranged domains).
func (c *Client) Fetch(ctx context.Context, domain models.Domain, key string) (json.RawMessage, error) {
	switch domain {
	case models.DomainOdds:
		snapshot, err := c.FetchOdds(ctx, key)
		if err != nil {
			return nil, err
		}
		return json.Marshal(snapshot)
	case models.DomainScores:
		return c.get(ctx, fmt.Sprintf("/sports/%s/scores", key), map[string]string{"daysFrom": "1"})
	case models.DomainLineups:
		return c.get(ctx, fmt.Sprintf("/sports/%s/participants", key), nil)
	case models.DomainMatchups:
		return c.get(ctx, fmt.Sprintf("/sports/%s/events", key), nil)
	default:
		return nil, fmt.Errorf("%w: unknown data domain %q", models.ErrValidation, domain)
	}
}

// FetchOdds retrieves current odds for a sport and flattens them into quotes
func (c *Client) FetchOdds(ctx context.Context, sportKey string) (*models.OddsSnapshot, error) {
	body, err := c.get(ctx, fmt.Sprintf("/sports/%s/odds", sportKey), map[string]string{
		"regions":    "us",
		"markets":    "h2h,spreads,totals",
		"oddsFormat": "american",
	})
	if err != nil {
		return nil, err
	}

	var events []oddsEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decode odds response: %w", err)
	}

	now := time.Now()
	c.pruneOpenings(now)

	snapshot := &models.OddsSnapshot{
		SportKey:  sportKey,
		FetchedAt: now,
	}

	for _, event := range events {
		for _, book := range event.Bookmakers {
			for _, market := range book.Markets {
				marketKey, ok := marketKeys[market.Key]
				if !ok {
					continue
				}
				for _, outcome := range market.Outcomes {
					quote := models.Quote{
						EventID:     event.ID,
						SportKey:    sportKey,
						Bookmaker:   book.Key,
						Market:      marketKey,
						OutcomeName: outcome.Name,
						Price:       outcome.Price,
						Point:       outcome.Point,
						EventStart:  event.CommenceTime,
						ObservedAt:  now,
					}
					c.stampOpening(&quote)
					snapshot.Quotes = append(snapshot.Quotes, quote)
				}
			}
		}
	}

	return snapshot, nil
}

// stampOpening records the first price seen for this quote's line and copies
// it onto every later observation
func (c *Client) stampOpening(q *models.Quote) {
	key := fmt.Sprintf("%s:%s:%s:%s", q.EventID, q.Bookmaker, q.Market, q.OutcomeName)

	c.mu.Lock()
	defer c.mu.Unlock()

	open, ok := c.openings[key]
	if !ok {
		open = opening{price: q.Price, point: q.Point, eventStart: q.EventStart}
		c.openings[key] = open
	}

	price := open.price
	q.OpeningPrice = &price
	q.OpeningPoint = open.point
}

// pruneOpenings drops opening records for events that have started. Lines
// stop moving once the game is underway, so those openings are never read
// again; without pruning the map grows for the life of the process.
func (c *Client) pruneOpenings(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, open := range c.openings {
		if !open.eventStart.IsZero() && open.eventStart.Before(now) {
			delete(c.openings, key)
		}
	}
}

// get makes a rate-limited GET request and returns the raw body
func (c *Client) get(ctx context.Context, path string, params map[string]string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s%s?apiKey=%s", c.baseURL, path, c.apiKey)
	for k, v := range params {
		url += fmt.Sprintf("&%s=%s", k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &models.RateLimitedError{RetryAfter: retryAfter(resp)}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("odds API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return body, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// marketKeys maps vendor market keys to internal ones
var marketKeys = map[string]string{
	"h2h":     models.MarketMoneyline,
	"spreads": models.MarketSpread,
	"totals":  models.MarketTotal,
}

// oddsEvent matches the vendor odds response shape
type oddsEvent struct {
	ID           string    `json:"id"`
	SportKey     string    `json:"sport_key"`
	CommenceTime time.Time `json:"commence_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	Bookmakers   []struct {
		Key     string `json:"key"`
		Markets []struct {
			Key      string `json:"key"`
			Outcomes []struct {
				Name  string   `json:"name"`
				Price int      `json:"price"`
				Point *float64 `json:"point,omitempty"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"bookmakers"`
}
