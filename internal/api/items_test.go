package api

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/erazemk/itemsvc/internal/model"
)

var sampleItem = map[string]any{
	"name":        "Test Item",
	"description": "A test item for testing purposes",
}

var sampleItems = []map[string]any{
	{"name": "Item 1", "description": "First test item"},
	{"name": "Item 2", "description": "Second test item"},
	{"name": "Item 3", "description": "Third test item"},
}

func createItem(t *testing.T, srv *testServer, body any) model.Item {
	t.Helper()
	resp, data := do(t, "POST", srv.URL+"/api/v1/items", "", body)
	expectStatus(t, resp, data, http.StatusCreated)
	return decode[model.Item](t, data)
}

func TestGetItemsEmpty(t *testing.T) {
	srv := setupTestServer(t)

	resp, body := do(t, "GET", srv.URL+"/api/v1/items", "", nil)
	expectStatus(t, resp, body, http.StatusOK)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("expected empty array, got %s", body)
	}
	if got := resp.Header.Get(TotalCountHeader); got != "0" {
		t.Errorf("expected total count 0, got %q", got)
	}
}

func TestCreateItem(t *testing.T) {
	srv := setupTestServer(t)

	item := createItem(t, srv, sampleItem)
	if item.ID != 1 {
		t.Errorf("expected id 1, got %d", item.ID)
	}
	if item.Name != "Test Item" {
		t.Errorf("expected name 'Test Item', got %q", item.Name)
	}
	if item.Description == nil || *item.Description != "A test item for testing purposes" {
		t.Errorf("unexpected description %v", item.Description)
	}
	if item.CreatedAt.IsZero() || item.UpdatedAt.IsZero() {
		t.Error("expected timestamps")
	}
}

func TestCreateItemWithoutDescription(t *testing.T) {
	srv := setupTestServer(t)

	resp, body := do(t, "POST", srv.URL+"/api/v1/items", "", map[string]string{"name": "Test Item"})
	expectStatus(t, resp, body, http.StatusCreated)

	raw := decode[map[string]any](t, body)
	if v, ok := raw["description"]; !ok || v != nil {
		t.Errorf("expected description null, got %v (present=%v)", v, ok)
	}
}

func TestCreateItemValidation(t *testing.T) {
	srv := setupTestServer(t)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"missing name", map[string]any{"description": "x"}, http.StatusUnprocessableEntity, codeValidation},
		{"empty name", map[string]any{"name": ""}, http.StatusUnprocessableEntity, codeValidation},
		{"name too long", map[string]any{"name": strings.Repeat("n", 256)}, http.StatusUnprocessableEntity, codeValidation},
		{"description too long", map[string]any{"name": "ok", "description": strings.Repeat("d", 1001)}, http.StatusUnprocessableEntity, codeValidation},
		{"malformed json", `{"name": `, http.StatusBadRequest, codeBadRequest},
		{"wrong type", map[string]any{"name": 42}, http.StatusBadRequest, codeBadRequest},
		{"trailing data", `{"name":"a"} {"name":"b"}`, http.StatusBadRequest, codeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, "POST", srv.URL+"/api/v1/items", "", tt.body)
			expectStatus(t, resp, body, tt.status)
			expectError(t, body, tt.code)
		})
	}

	// Nothing was stored.
	resp, body := do(t, "GET", srv.URL+"/api/v1/items", "", nil)
	expectStatus(t, resp, body, http.StatusOK)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("expected no items, got %s", body)
	}
}

func TestValidationDetailListsFields(t *testing.T) {
	srv := setupTestServer(t)

	resp, body := do(t, "POST", srv.URL+"/api/v1/items", "", map[string]any{
		"name":        "",
		"description": strings.Repeat("d", 1001),
	})
	expectStatus(t, resp, body, http.StatusUnprocessableEntity)

	type validationBody struct {
		Detail []model.FieldError `json:"detail"`
	}
	e := decode[validationBody](t, body)
	fields := map[string]bool{}
	for _, fe := range e.Detail {
		fields[fe.Field] = true
	}
	if !fields["name"] || !fields["description"] {
		t.Errorf("expected name and description errors, got %+v", e.Detail)
	}
}

func TestGetItemByID(t *testing.T) {
	srv := setupTestServer(t)
	created := createItem(t, srv, sampleItem)

	resp, body := do(t, "GET", fmt.Sprintf("%s/api/v1/items/%d", srv.URL, created.ID), "", nil)
	expectStatus(t, resp, body, http.StatusOK)

	item := decode[model.Item](t, body)
	if item.ID != created.ID || item.Name != "Test Item" {
		t.Errorf("unexpected item %+v", item)
	}
}

func TestGetNonexistentItem(t *testing.T) {
	srv := setupTestServer(t)

	resp, body := do(t, "GET", srv.URL+"/api/v1/items/999", "", nil)
	expectStatus(t, resp, body, http.StatusNotFound)
	e := expectError(t, body, codeNotFound)
	if e.Detail != "Item not found" {
		t.Errorf("expected detail 'Item not found', got %v", e.Detail)
	}
}

func TestInvalidItemID(t *testing.T) {
	srv := setupTestServer(t)

	resp, body := do(t, "GET", srv.URL+"/api/v1/items/abc", "", nil)
	expectStatus(t, resp, body, http.StatusBadRequest)
	expectError(t, body, codeBadRequest)
}

func TestUpdateItem(t *testing.T) {
	srv := setupTestServer(t)
	created := createItem(t, srv, sampleItem)

	resp, body := do(t, "PUT", fmt.Sprintf("%s/api/v1/items/%d", srv.URL, created.ID), "", map[string]any{
		"name":        "Updated Item",
		"description": "Updated description",
	})
	expectStatus(t, resp, body, http.StatusOK)

	item := decode[model.Item](t, body)
	if item.ID != created.ID {
		t.Errorf("expected id %d, got %d", created.ID, item.ID)
	}
	if item.Name != "Updated Item" || item.Description == nil || *item.Description != "Updated description" {
		t.Errorf("unexpected item %+v", item)
	}
	if !item.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", created.CreatedAt, item.CreatedAt)
	}
	if !item.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("expected updated_at bump: %v -> %v", created.UpdatedAt, item.UpdatedAt)
	}

	// The change is persisted.
	resp, body = do(t, "GET", fmt.Sprintf("%s/api/v1/items/%d", srv.URL, created.ID), "", nil)
	expectStatus(t, resp, body, http.StatusOK)
	if got := decode[model.Item](t, body); got.Name != "Updated Item" {
		t.Errorf("expected persisted update, got %q", got.Name)
	}
}

func TestUpdateNonexistentItem(t *testing.T) {
	srv := setupTestServer(t)

	resp, body := do(t, "PUT", srv.URL+"/api/v1/items/999", "", map[string]string{"name": "Updated Item"})
	expectStatus(t, resp, body, http.StatusNotFound)
	e := expectError(t, body, codeNotFound)
	if e.Detail != "Item not found" {
		t.Errorf("expected detail 'Item not found', got %v", e.Detail)
	}
}

func TestUpdateItemInvalid(t *testing.T) {
	srv := setupTestServer(t)
	created := createItem(t, srv, sampleItem)
	itemURL := fmt.Sprintf("%s/api/v1/items/%d", srv.URL, created.ID)

	resp, body := do(t, "PUT", itemURL, "", map[string]string{"name": ""})
	expectStatus(t, resp, body, http.StatusUnprocessableEntity)

	resp, body = do(t, "PUT", itemURL, "", "not json")
	expectStatus(t, resp, body, http.StatusBadRequest)

	resp, body = do(t, "PUT", srv.URL+"/api/v1/items/x", "", map[string]string{"name": "ok"})
	expectStatus(t, resp, body, http.StatusBadRequest)
}

func TestDeleteItem(t *testing.T) {
	srv := setupTestServer(t)
	created := createItem(t, srv, sampleItem)
	itemURL := fmt.Sprintf("%s/api/v1/items/%d", srv.URL, created.ID)

	resp, body := do(t, "DELETE", itemURL, "", nil)
	expectStatus(t, resp, body, http.StatusOK)
	if msg := decode[messageBody](t, body); msg.Message != "Item deleted successfully" {
		t.Errorf("unexpected message %q", msg.Message)
	}

	resp, body = do(t, "GET", itemURL, "", nil)
	expectStatus(t, resp, body, http.StatusNotFound)

	resp, body = do(t, "DELETE", itemURL, "", nil)
	expectStatus(t, resp, body, http.StatusNotFound)
	expectError(t, body, codeNotFound)
}

func TestDeleteNonexistentItem(t *testing.T) {
	srv := setupTestServer(t)

	resp, body := do(t, "DELETE", srv.URL+"/api/v1/items/999", "", nil)
	expectStatus(t, resp, body, http.StatusNotFound)
	e := expectError(t, body, codeNotFound)
	if e.Detail != "Item not found" {
		t.Errorf("expected detail 'Item not found', got %v", e.Detail)
	}
}

func listItems(t *testing.T, srv *testServer, q url.Values) ([]model.Item, *http.Response) {
	t.Helper()
	resp, body := do(t, "GET", srv.URL+"/api/v1/items?"+q.Encode(), "", nil)
	expectStatus(t, resp, body, http.StatusOK)
	return decode[[]model.Item](t, body), resp
}

func TestGetItemsWithPagination(t *testing.T) {
	srv := setupTestServer(t)
	for _, item := range sampleItems {
		createItem(t, srv, item)
	}

	items, resp := listItems(t, srv, url.Values{"limit": {"2"}, "offset": {"0"}})
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Name != "Item 1" || items[1].Name != "Item 2" {
		t.Errorf("unexpected order: %q, %q", items[0].Name, items[1].Name)
	}
	if got := resp.Header.Get(TotalCountHeader); got != "3" {
		t.Errorf("expected total count 3, got %q", got)
	}

	items, _ = listItems(t, srv, url.Values{"limit": {"2"}, "offset": {"2"}})
	if len(items) != 1 || items[0].Name != "Item 3" {
		t.Errorf("unexpected second page %+v", items)
	}

	items, _ = listItems(t, srv, url.Values{"offset": {"10"}})
	if len(items) != 0 {
		t.Errorf("expected empty page, got %d items", len(items))
	}
}

func TestSearchItems(t *testing.T) {
	srv := setupTestServer(t)
	for _, item := range sampleItems {
		createItem(t, srv, item)
	}

	items, resp := listItems(t, srv, url.Values{"search": {"Item 1"}})
	if len(items) != 1 || items[0].Name != "Item 1" {
		t.Errorf("search by name: unexpected %+v", items)
	}
	if got := resp.Header.Get(TotalCountHeader); got != "1" {
		t.Errorf("expected total count 1, got %q", got)
	}

	items, _ = listItems(t, srv, url.Values{"search": {"First"}})
	if len(items) != 1 || items[0].Description == nil || !strings.Contains(*items[0].Description, "First") {
		t.Errorf("search by description: unexpected %+v", items)
	}

	items, _ = listItems(t, srv, url.Values{"search": {"test"}, "limit": {"1"}, "offset": {"1"}})
	if len(items) != 1 || items[0].Name != "Item 2" {
		t.Errorf("search with pagination: unexpected %+v", items)
	}
}

func TestListInvalidParams(t *testing.T) {
	srv := setupTestServer(t)

	for _, q := range []string{"limit=0", "limit=-1", "limit=abc", "limit=1001", "offset=-1", "offset=x"} {
		resp, body := do(t, "GET", srv.URL+"/api/v1/items?"+q, "", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, resp.StatusCode)
			continue
		}
		expectError(t, body, codeBadRequest)
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{0, 128, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadImage(t *testing.T, target string, data []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()

	req, _ := http.NewRequest("PUT", target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body := new(bytes.Buffer)
	body.ReadFrom(resp.Body)
	return resp, body.Bytes()
}

func TestItemImageFlow(t *testing.T) {
	srv := setupTestServer(t)
	created := createItem(t, srv, sampleItem)
	imageURL := fmt.Sprintf("%s/api/v1/items/%d/image", srv.URL, created.ID)

	resp, body := do(t, "GET", imageURL, "", nil)
	expectStatus(t, resp, body, http.StatusNotFound)

	resp, body = uploadImage(t, imageURL, testPNG(t, 40, 20))
	expectStatus(t, resp, body, http.StatusOK)

	resp, body = do(t, "GET", imageURL, "", nil)
	expectStatus(t, resp, body, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}
	if _, _, err := image.Decode(bytes.NewReader(body)); err != nil {
		t.Errorf("stored image does not decode: %v", err)
	}

	resp, body = uploadImage(t, imageURL, []byte("plain text, not an image"))
	expectStatus(t, resp, body, http.StatusBadRequest)

	resp, body = uploadImage(t, srv.URL+"/api/v1/items/999/image", testPNG(t, 4, 4))
	expectStatus(t, resp, body, http.StatusNotFound)
}

func TestSearchItemsUnicode(t *testing.T) {
	srv := setupTestServer(t)
	createItem(t, srv, map[string]any{"name": "Čokolada"})
	createItem(t, srv, map[string]any{"name": "Kava"})

	for _, term := range []string{"Čokolada", "čok"} {
		items, resp := listItems(t, srv, url.Values{"search": {term}})
		if len(items) != 1 || items[0].Name != "Čokolada" {
			t.Errorf("search %q: unexpected %+v", term, items)
		}
		if got := resp.Header.Get(TotalCountHeader); got != "1" {
			t.Errorf("search %q: expected total count 1, got %q", term, got)
		}
	}
}
