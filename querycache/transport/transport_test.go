package transport_test

import (
	"context"
	"encoding/base64"
	"testing"

	httpclient "github.com/shashiranjanraj/qcache/pkg/http"
	"github.com/shashiranjanraj/qcache/pkg/testkit"
	"github.com/shashiranjanraj/qcache/querycache/query"
	"github.com/shashiranjanraj/qcache/querycache/transport"
)

func withMockTransport(t *testing.T, scenario *testkit.Scenario) *testkit.MockTransport {
	t.Helper()
	mt := testkit.NewMockTransport(scenario)
	httpclient.DefaultClient.Transport = mt
	t.Cleanup(httpclient.ResetTransport)
	return mt
}

func TestHTTPFetcherReturnsBody(t *testing.T) {
	body := base64.StdEncoding.EncodeToString([]byte(`{"id":"1","name":"Widget"}`))
	scenario := &testkit.Scenario{
		Name:         "getItem",
		RequestURL:   "https://api.test/items/1",
		ExpectedCode: 200,
		NetUtilMockStep: []testkit.MockStep{
			{
				Method:     "httprequest",
				IsMock:     true,
				MatchURL:   "https://api.test/items/1",
				ReturnData: testkit.MockReturnData{StatusCode: 200, Body: body},
			},
		},
	}
	mt := withMockTransport(t, scenario)

	f := transport.NewHTTPFetcher(query.RetryPolicy{})
	resp, err := f.Fetch(context.Background(), query.Request{Method: "GET", URL: "https://api.test/items/1"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(resp.Body) != `{"id":"1","name":"Widget"}` {
		t.Fatalf("unexpected body: %s", resp.Body)
	}
	if errs := mt.AssertAllCalled(); len(errs) != 0 {
		t.Fatalf("expected mock to be called: %v", errs)
	}
}

func TestHTTPFetcherSurfacesHTTPErrorStatus(t *testing.T) {
	scenario := &testkit.Scenario{
		Name:         "getMissingItem",
		RequestURL:   "https://api.test/items/404",
		ExpectedCode: 404,
		NetUtilMockStep: []testkit.MockStep{
			{
				Method:     "httprequest",
				IsMock:     true,
				MatchURL:   "https://api.test/items/404",
				ReturnData: testkit.MockReturnData{StatusCode: 404},
			},
		},
	}
	withMockTransport(t, scenario)

	f := transport.NewHTTPFetcher(query.RetryPolicy{})
	_, err := f.Fetch(context.Background(), query.Request{Method: "GET", URL: "https://api.test/items/404"})
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}
