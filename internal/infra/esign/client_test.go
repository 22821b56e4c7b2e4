package esign

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendsBearerTokenAndListsTemplatesAndBrands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/restapi/v2.1/accounts/acc 1/templates":
			_, _ = io.WriteString(w, `{"envelopeTemplates":[{"templateId":"T1","name":"NDA"}],"resultSetSize":"1"}`)
		case "/restapi/v2.1/accounts/acc 1/brands":
			_, _ = io.WriteString(w, `{"brands":[{"brandId":"B1","brandName":"Blue"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(context.Background(), srv.URL+"/restapi/", "tok-1")

	tpls, err := c.ListTemplates(context.Background(), "acc 1")
	require.NoError(t, err)
	require.Len(t, tpls.EnvelopeTemplates, 1)
	assert.Equal(t, "T1", tpls.EnvelopeTemplates[0].TemplateID)

	brands, err := c.ListBrands(context.Background(), "acc 1")
	require.NoError(t, err)
	require.Len(t, brands.Brands, 1)
	assert.Equal(t, "Blue", brands.Brands[0].BrandName)
}

func TestClient_CreateEnvelopePostsDefinition(t *testing.T) {
	var got EnvelopeDefinition
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2.1/accounts/A1/envelopes", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"envelopeId":"E1","status":"sent"}`)
	}))
	defer srv.Close()

	def := EnvelopeDefinition{
		TemplateID: "T1",
		BrandID:    "B1",
		Status:     "sent",
		TemplateRoles: []TemplateRole{
			{Name: "Sam", Email: "sam@example.com", RoleName: RoleSigner},
			{Name: "Kim", Email: "kim@example.com", RoleName: RoleCC},
		},
	}
	summary, err := NewClient(context.Background(), srv.URL, "tok").CreateEnvelope(context.Background(), "A1", def)
	require.NoError(t, err)
	assert.Equal(t, "E1", summary.EnvelopeID)
	assert.Equal(t, def, got)
}

func TestClient_NonSuccessBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"errorCode":"INVALID_BRAND_ID","message":"bad brand"}`)
	}))
	defer srv.Close()

	_, err := NewClient(context.Background(), srv.URL, "tok").CreateEnvelope(context.Background(), "A1", EnvelopeDefinition{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "INVALID_BRAND_ID")

	d := Details(err)
	require.NotNil(t, d.Code)
	require.NotNil(t, d.Message)
	assert.Equal(t, "INVALID_BRAND_ID", *d.Code)
	assert.Equal(t, "bad brand", *d.Message)
}

func TestClient_TimeoutBoundsHungCalls(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(context.Background(), srv.URL, "tok", WithTimeout(50*time.Millisecond))
	_, err := c.ListBrands(context.Background(), "A1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	d := Details(err)
	assert.Nil(t, d.Code)
	assert.Nil(t, d.Message)
}

func TestClient_UserInfoUsesOAuthBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/userinfo", r.URL.Path)
		_, _ = io.WriteString(w, `{"sub":"u1","name":"Sam","email":"sam@example.com","accounts":[{"account_id":"A1","is_default":true,"base_uri":"https://demo.example"}]}`)
	}))
	defer srv.Close()

	info, err := NewClient(context.Background(), srv.URL, "tok").UserInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, info.Accounts, 1)
	assert.True(t, info.Accounts[0].IsDefault)
	assert.Equal(t, "https://demo.example", info.Accounts[0].BaseURI)
}

func TestDetails_ToleratesMissingAndMalformedBodies(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"nil error", nil},
		{"plain error", errors.New("network down")},
		{"empty body", &APIError{StatusCode: 500}},
		{"html body", &APIError{StatusCode: 502, Body: []byte("<html>bad gateway</html>")}},
		{"json array", &APIError{StatusCode: 400, Body: []byte(`[1,2]`)}},
		{"json null", &APIError{StatusCode: 400, Body: []byte(`null`)}},
		{"other fields only", &APIError{StatusCode: 400, Body: []byte(`{"detail":"x"}`)}},
		{"non-string fields", &APIError{StatusCode: 400, Body: []byte(`{"errorCode":7,"message":["a"]}`)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Details(tc.err)
			assert.Nil(t, d.Code)
			assert.Nil(t, d.Message)
		})
	}

	partial := Details(&APIError{StatusCode: 400, Body: []byte(`{"errorCode":"ONLY_CODE"}`)})
	require.NotNil(t, partial.Code)
	assert.Equal(t, "ONLY_CODE", *partial.Code)
	assert.Nil(t, partial.Message)

	mixed := Details(&APIError{StatusCode: 400, Body: []byte(`{"errorCode":"X","message":{"k":1}}`)})
	require.NotNil(t, mixed.Code)
	assert.Equal(t, "X", *mixed.Code)
	assert.Nil(t, mixed.Message)

	onlyMessage := Details(&APIError{StatusCode: 400, Body: []byte(`{"errorCode":null,"message":"bad brand"}`)})
	assert.Nil(t, onlyMessage.Code)
	require.NotNil(t, onlyMessage.Message)
	assert.Equal(t, "bad brand", *onlyMessage.Message)
}

func TestEnvelopeDefinitionValidate(t *testing.T) {
	valid := EnvelopeDefinition{
		TemplateID: "T1",
		BrandID:    "B1",
		TemplateRoles: []TemplateRole{
			{Name: "Sam", Email: "sam@example.com", RoleName: RoleSigner},
			{Name: "Kim", Email: "kim@example.com", RoleName: RoleCC},
		},
	}
	require.NoError(t, valid.Validate())

	badRole := valid
	badRole.TemplateRoles = []TemplateRole{{Name: "Sam", Email: "sam@example.com", RoleName: "approver"}}
	assert.Error(t, badRole.Validate())

	badEmail := valid
	badEmail.TemplateRoles = []TemplateRole{{Name: "Sam", Email: "not-an-email", RoleName: RoleSigner}}
	assert.Error(t, badEmail.Validate())

	noName := valid
	noName.TemplateRoles = []TemplateRole{{Email: "sam@example.com", RoleName: RoleSigner}}
	assert.Error(t, noName.Validate())

	noTemplate := valid
	noTemplate.TemplateID = ""
	assert.Error(t, noTemplate.Validate())
}
