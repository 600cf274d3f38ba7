// internal/router/router_test.go
package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/storesight/catalog-backend/internal/config"
	"github.com/storesight/catalog-backend/internal/store"
	"github.com/storesight/catalog-backend/internal/utils"
)

// memStore is a minimal in-memory Store for routing tests. Queries are served
// in a single page; the cursor mechanics have their own tests in the store and
// services packages.
type memStore struct {
	tableKeys map[string][]string
	tables    map[string]map[string]store.Item
}

func newMemStore() *memStore {
	return &memStore{
		tableKeys: map[string][]string{
			"catalog_dev_product":     {"store_product_url"},
			"catalog_dev_product_tag": {"store_product_url", "tag"},
		},
		tables: make(map[string]map[string]store.Item),
	}
}

func (m *memStore) table(name string) map[string]store.Item {
	if m.tables[name] == nil {
		m.tables[name] = make(map[string]store.Item)
	}
	return m.tables[name]
}

func (m *memStore) keyString(table string, item store.Item) string {
	parts := make([]string, 0, 2)
	for _, attr := range m.tableKeys[table] {
		parts = append(parts, aws.StringValue(item[attr].S))
	}
	return strings.Join(parts, "|")
}

func (m *memStore) PutItem(table string, item store.Item) error {
	m.table(table)[m.keyString(table, item)] = item
	return nil
}

func (m *memStore) PutItemIfAbsent(table string, item store.Item, keyAttr string) error {
	key := m.keyString(table, item)
	if _, exists := m.table(table)[key]; exists {
		return store.ErrConditionFailed
	}
	m.table(table)[key] = item
	return nil
}

func (m *memStore) GetItem(table string, key store.Item) (store.Item, error) {
	item, ok := m.table(table)[m.keyString(table, key)]
	if !ok {
		return nil, nil
	}
	return item, nil
}

func (m *memStore) UpdateItemSet(table string, key store.Item, sets store.Item) error {
	keyStr := m.keyString(table, key)
	item, ok := m.table(table)[keyStr]
	if !ok {
		item = store.Item{}
		for attr, value := range key {
			item[attr] = value
		}
	}
	for attr, value := range sets {
		item[attr] = value
	}
	m.table(table)[keyStr] = item
	return nil
}

func (m *memStore) BatchDeleteItems(table string, keys []store.Item) error {
	for _, key := range keys {
		delete(m.table(table), m.keyString(table, key))
	}
	return nil
}

func (m *memStore) Query(spec store.QuerySpec) *store.Iterator {
	return store.NewIterator(spec, func(startKey store.Item, limit int64) ([]store.Item, store.Item, error) {
		var sparseAttr string
		if spec.Index != "" {
			sparseAttr = strings.TrimSuffix(spec.Index, "_idx")
		}

		var keys []string
		for key, item := range m.table(spec.Table) {
			if sparseAttr != "" && item[sparseAttr] == nil {
				continue
			}
			hash := item[spec.HashKey]
			if hash == nil || aws.StringValue(hash.S) != aws.StringValue(spec.HashValue.S) {
				continue
			}
			if spec.RangeKey != "" {
				rangeAttr := item[spec.RangeKey]
				if rangeAttr == nil || aws.StringValue(rangeAttr.N) != aws.StringValue(spec.RangeValue.N) {
					continue
				}
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var page []store.Item
		for _, key := range keys {
			item := m.table(spec.Table)[key]
			out := make(store.Item, len(item))
			if len(spec.Projection) > 0 {
				for _, attr := range spec.Projection {
					if value, ok := item[attr]; ok {
						out[attr] = value
					}
				}
			} else {
				for attr, value := range item {
					out[attr] = value
				}
			}
			page = append(page, out)
		}
		return page, nil, nil
	})
}

type RouterSuite struct {
	suite.Suite
	engine *gin.Engine
	token  string
	addr   string
}

// Each test gets its own source address so the per-IP rate limiter state never
// carries over between tests.
var nextTestIP int

func (s *RouterSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Environment: "dev",
		Auth:        config.AuthConfig{ServiceTokenSecret: "test-secret", TokenTTL: 1},
	}
	s.engine = Initialize(newMemStore(), cfg)

	nextTestIP++
	s.addr = fmt.Sprintf("10.1.0.%d:51000", nextTestIP)

	token, err := utils.GenerateServiceToken("scraper-test", 1)
	s.Require().NoError(err)
	s.token = token
}

func (s *RouterSuite) request(method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = s.addr
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	recorder := httptest.NewRecorder()
	s.engine.ServeHTTP(recorder, req)
	return recorder
}

func (s *RouterSuite) decode(recorder *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	s.Require().NoError(json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func createBody(productURL, title string) map[string]interface{} {
	return map[string]interface{}{
		"product_url":  productURL,
		"store_domain": "waffles.food",
		"is_available": true,
		"attributes": map[string]interface{}{
			"title":            title,
			"scraper_type":     "generic_scraper",
			"first_scraped_at": "2020-06-01T00:00:01+00:00",
			"last_scraped_at":  "2020-06-01T00:00:01+00:00",
			"image_urls":       []string{"https://waffles.food/images/waffles"},
		},
	}
}

func (s *RouterSuite) TestHealthIsPublic() {
	recorder := s.request(http.MethodGet, "/health", nil, false)
	s.Equal(http.StatusOK, recorder.Code)
}

func (s *RouterSuite) TestAPIRequiresServiceToken() {
	recorder := s.request(http.MethodGet, "/v1/products?product_url=x", nil, false)
	s.Equal(http.StatusUnauthorized, recorder.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/products?product_url=x", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	recorder = httptest.NewRecorder()
	s.engine.ServeHTTP(recorder, req)
	s.Equal(http.StatusUnauthorized, recorder.Code)
}

func (s *RouterSuite) TestProductLifecycle() {
	url := "https://waffles.food/product/waffles"

	recorder := s.request(http.MethodPost, "/v1/products", createBody(url, "Waffles"), true)
	s.Require().Equal(http.StatusCreated, recorder.Code, recorder.Body.String())

	// Duplicate creation conflicts.
	recorder = s.request(http.MethodPost, "/v1/products", createBody(url, "Waffles"), true)
	s.Equal(http.StatusConflict, recorder.Code)

	// Point read by any URL variant.
	recorder = s.request(http.MethodGet, "/v1/products?product_url=http://www.waffles.food/product/waffles", nil, true)
	s.Require().Equal(http.StatusOK, recorder.Code)
	product := s.decode(recorder)["data"].(map[string]interface{})["product"].(map[string]interface{})
	s.Equal("waffles.food/product/waffles", product["store_product_url"])

	// Index fetch.
	recorder = s.request(http.MethodGet, "/v1/products/by-store/waffles.food?is_available=true", nil, true)
	s.Require().Equal(http.StatusOK, recorder.Code)
	products := s.decode(recorder)["data"].(map[string]interface{})["products"].([]interface{})
	s.Len(products, 1)

	// Tags were emitted for the new product.
	recorder = s.request(http.MethodGet, "/v1/tags?product_urls="+url, nil, true)
	s.Require().Equal(http.StatusOK, recorder.Code)
	tags := s.decode(recorder)["data"].(map[string]interface{})["tags"].([]interface{})
	s.Len(tags, 2)

	// Delete removes the record and its tags.
	recorder = s.request(http.MethodDelete, "/v1/products", map[string]interface{}{
		"product_urls": []string{url},
	}, true)
	s.Require().Equal(http.StatusOK, recorder.Code)

	recorder = s.request(http.MethodGet, "/v1/products?product_url="+url, nil, true)
	s.Equal(http.StatusNotFound, recorder.Code)

	recorder = s.request(http.MethodGet, "/v1/tags?product_urls="+url, nil, true)
	s.Require().Equal(http.StatusOK, recorder.Code)
	tags = s.decode(recorder)["data"].(map[string]interface{})["tags"].([]interface{})
	s.Empty(tags)
}

func (s *RouterSuite) TestUpdateMissingProductIs404() {
	recorder := s.request(http.MethodPut, "/v1/products", map[string]interface{}{
		"product_url": "https://waffles.food/product/nope",
		"attributes":  map[string]interface{}{"title": "Waffles"},
	}, true)
	s.Equal(http.StatusNotFound, recorder.Code)
}

func (s *RouterSuite) TestCreateValidationFailures() {
	// Missing store_domain.
	recorder := s.request(http.MethodPost, "/v1/products", map[string]interface{}{
		"product_url": "https://waffles.food/product/waffles",
	}, true)
	s.Equal(http.StatusBadRequest, recorder.Code)

	// Invalid attribute payload.
	body := createBody("https://waffles.food/product/waffles", "Waffles")
	body["attributes"].(map[string]interface{})["primary_price"] = "$30.00"
	recorder = s.request(http.MethodPost, "/v1/products", body, true)
	s.Equal(http.StatusBadRequest, recorder.Code)
}

func (s *RouterSuite) TestDeleteTagsEndpoint() {
	url := "https://waffles.food/product/waffles"
	recorder := s.request(http.MethodPost, "/v1/products", createBody(url, "Waffles"), true)
	s.Require().Equal(http.StatusCreated, recorder.Code)

	recorder = s.request(http.MethodDelete, "/v1/tags", map[string]interface{}{
		"tag":          "image_not_indexed",
		"product_urls": []string{url},
	}, true)
	s.Require().Equal(http.StatusOK, recorder.Code)

	recorder = s.request(http.MethodGet, "/v1/tags?product_urls="+url+"&tag=image_not_indexed", nil, true)
	s.Require().Equal(http.StatusOK, recorder.Code)
	tags := s.decode(recorder)["data"].(map[string]interface{})["tags"].([]interface{})
	s.Empty(tags)

	recorder = s.request(http.MethodDelete, "/v1/tags", map[string]interface{}{
		"tag":          "not_a_tag",
		"product_urls": []string{url},
	}, true)
	s.Equal(http.StatusBadRequest, recorder.Code)
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func TestServiceTokenRoundTrip(t *testing.T) {
	utils.SetJWTSecret("another-secret")
	token, err := utils.GenerateServiceToken("image-indexer", 1)
	require.NoError(t, err)

	claims, err := utils.ValidateServiceToken(token)
	require.NoError(t, err)
	assert.Equal(t, "image-indexer", claims.ServiceName)
}
