package sheets

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/smallbiznis/metalid/internal/config"
	"github.com/smallbiznis/metalid/internal/legacy/domain"
	"github.com/smallbiznis/metalid/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sheetKey       = "sheet"
	defaultTimeout = 10 * time.Second
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle `optional:"true"`
	Cfg       config.Config
	Log       *zap.Logger
	Client    *http.Client `optional:"true"`
}

// Source serves rows of a Google Sheets CSV export. The whole sheet is
// cached under one key and refetched after the TTL.
type Source struct {
	log     *zap.Logger
	client  *http.Client
	csvURL  string
	enabled bool
	cache   *ttlcache.Cache[string, map[string]domain.Record]
}

func New(p Params) domain.Source {
	ttl := time.Duration(p.Cfg.Legacy.CacheTTL) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}
	client := p.Client
	if client == nil {
		client = tracing.WrapHTTPClient(&http.Client{Timeout: defaultTimeout})
	}

	s := &Source{
		log:     p.Log.Named("legacy.sheets"),
		client:  client,
		enabled: p.Cfg.Legacy.SpreadsheetID != "",
		cache: ttlcache.New(
			ttlcache.WithTTL[string, map[string]domain.Record](ttl),
			ttlcache.WithDisableTouchOnHit[string, map[string]domain.Record](),
		),
	}
	if s.enabled {
		s.csvURL = fmt.Sprintf("%s/%s/export?format=csv", p.Cfg.Legacy.BaseURL, p.Cfg.Legacy.SpreadsheetID)
	}

	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go s.cache.Start()
				return nil
			},
			OnStop: func(context.Context) error {
				s.cache.Stop()
				return nil
			},
		})
	}
	return s
}

func (s *Source) Find(ctx context.Context, id string) (*domain.Record, error) {
	if !s.enabled {
		return nil, domain.ErrDisabled
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}

	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	record, ok := rows[id]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *Source) rows(ctx context.Context) (map[string]domain.Record, error) {
	if item := s.cache.Get(sheetKey); item != nil {
		return item.Value(), nil
	}

	rows, err := s.fetch(ctx)
	if err != nil {
		s.log.Warn("legacy sheet fetch failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	s.cache.Set(sheetKey, rows, ttlcache.DefaultTTL)
	return rows, nil
}

func (s *Source) fetch(ctx context.Context) (map[string]domain.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.csvURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parse(resp.Body)
}

func parse(r io.Reader) (map[string]domain.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return map[string]domain.Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := columns["id"]; !ok {
		return nil, errors.New("missing id column")
	}

	rows := make(map[string]domain.Record)
	for {
		line, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(line) {
				return ""
			}
			return strings.TrimSpace(line[idx])
		}

		id := get("id")
		if id == "" {
			continue
		}
		if _, seen := rows[id]; seen {
			continue
		}
		record := domain.Record{
			ID:    id,
			Type:  get("type"),
			Name:  get("name"),
			Bio:   get("bio"),
			Links: []domain.Link{},
		}
		for i := 1; i <= domain.MaxLinks; i++ {
			label := get(fmt.Sprintf("link%d_label", i))
			url := get(fmt.Sprintf("link%d_url", i))
			if label != "" && url != "" {
				record.Links = append(record.Links, domain.Link{Label: label, URL: url})
			}
		}
		rows[id] = record
	}
	return rows, nil
}
