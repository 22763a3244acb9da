package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loveshotsmedia/l3arn-updated/utils"
	"go.uber.org/zap"
)

const (
	membershipsTable = "tenant_memberships"
	profilesTable    = "profiles"
)

// RESTStore reads memberships through the Supabase PostgREST API using the service role key.
type RESTStore struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRESTStore creates a store for the Supabase project at baseURL.
func NewRESTStore(baseURL, serviceKey string, timeout time.Duration, logger *zap.Logger) *RESTStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// LookupMembership implements MembershipStore.
func (s *RESTStore) LookupMembership(ctx context.Context, userID, tenantID string) (Membership, bool, error) {
	q := url.Values{}
	q.Set("select", "tenant_id,role,created_at")
	q.Set("user_id", "eq."+userID)
	if tenantID != "" {
		q.Set("tenant_id", "eq."+tenantID)
	} else {
		q.Set("order", "created_at.asc")
	}
	q.Set("limit", "1")

	var rows []Membership
	if err := s.get(ctx, membershipsTable, q, &rows); err != nil {
		return Membership{}, false, err
	}
	if len(rows) == 0 {
		return Membership{}, false, nil
	}
	if err := utils.ValidateStruct(rows[0]); err != nil {
		return Membership{}, false, fmt.Errorf("invalid %s row: %w", membershipsTable, err)
	}
	return rows[0], true, nil
}

type profileRow struct {
	DefaultTenantID *string `json:"default_tenant_id"`
}

// DefaultTenant implements MembershipStore.
func (s *RESTStore) DefaultTenant(ctx context.Context, userID string) (string, error) {
	q := url.Values{}
	q.Set("select", "default_tenant_id")
	q.Set("user_id", "eq."+userID)
	q.Set("limit", "1")

	var rows []profileRow
	if err := s.get(ctx, profilesTable, q, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0].DefaultTenantID == nil {
		return "", nil
	}
	return *rows[0].DefaultTenantID, nil
}

func (s *RESTStore) get(ctx context.Context, table string, q url.Values, out interface{}) error {
	endpoint := s.baseURL + "/rest/v1/" + table + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer resp.Body.Close()

	s.logger.Debug("postgrest.query",
		zap.String("table", table),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("query %s: status code %d: %s", table, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", table, err)
	}
	return nil
}
