package ap2

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegistryRegisterLookup(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register(StoreInfo{StoreID: "store_b", Name: "Books", BaseURL: "http://books.local"})
	registry.Register(StoreInfo{StoreID: "store_a", Name: "Lamps", BaseURL: "http://lamps.local"})

	info, ok := registry.Lookup("store_a")
	if !ok || info.Name != "Lamps" {
		t.Errorf("lookup = %+v, ok = %v", info, ok)
	}
	if _, ok := registry.Lookup("store_missing"); ok {
		t.Error("unknown store resolved")
	}

	// Re-registering replaces the entry.
	registry.Register(StoreInfo{StoreID: "store_a", Name: "Lamps & More", BaseURL: "http://lamps.local"})
	info, _ = registry.Lookup("store_a")
	if info.Name != "Lamps & More" {
		t.Errorf("name = %q", info.Name)
	}

	list := registry.List()
	if len(list) != 2 || list[0].StoreID != "store_a" || list[1].StoreID != "store_b" {
		t.Errorf("list = %+v", list)
	}
}

func TestRegistryHandler(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register(StoreInfo{StoreID: "store_a", Name: "Lamps", BaseURL: "http://lamps.local"})

	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stores", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stores []StoreInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &stores); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stores) != 1 || stores[0].StoreID != "store_a" {
		t.Errorf("stores = %+v", stores)
	}
}
