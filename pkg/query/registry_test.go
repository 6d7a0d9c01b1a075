package query

import (
	"errors"
	"testing"
)

func newTestRegistry(t *testing.T, strict bool) *Registry {
	t.Helper()
	opts := RegistryOptions{DefaultCollection: "users", Strict: strict}
	r, err := NewRegistry(DefaultCollections(), opts)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestRegistry_Resolve(t *testing.T) {
	r := newTestRegistry(t, false)

	c, fellBack, err := r.Resolve("requestlogs")
	if err != nil || fellBack {
		t.Fatalf("Resolve(requestlogs) = %v, %v", fellBack, err)
	}
	if c.StorageName != "requestlog" {
		t.Errorf("storage name = %q, want requestlog", c.StorageName)
	}

	for _, name := range []string{"", "invoices", "Products"} {
		c, fellBack, err := r.Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", name, err)
		}
		if !fellBack || c.Name != "users" {
			t.Errorf("Resolve(%q) = %q (fellBack=%v), want users fallback", name, c.Name, fellBack)
		}
	}
}

func TestRegistry_StrictRejectsUnknown(t *testing.T) {
	r := newTestRegistry(t, true)

	_, _, err := r.Resolve("invoices")
	if !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
	if KindOf(err) != KindUnknownCollection {
		t.Fatalf("kind = %v", KindOf(err))
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	if _, err := NewRegistry(DefaultCollections(), RegistryOptions{}); err == nil {
		t.Error("expected error without default collection in lenient mode")
	}
	if _, err := NewRegistry(DefaultCollections(), RegistryOptions{DefaultCollection: "missing"}); err == nil {
		t.Error("expected error for unregistered default collection")
	}
	dup := []Collection{{Name: "a"}, {Name: "a"}}
	if _, err := NewRegistry(dup, RegistryOptions{Strict: true}); err == nil {
		t.Error("expected error for duplicate collection")
	}
	if _, err := NewRegistry(DefaultCollections(), RegistryOptions{Strict: true}); err != nil {
		t.Errorf("strict registry without default: %v", err)
	}
}

func TestCollection_CheckField(t *testing.T) {
	r := newTestRegistry(t, false)
	users, _ := r.Lookup("users")
	translations, _ := r.Lookup("translations")

	tests := []struct {
		name    string
		c       *Collection
		field   string
		wantErr bool
	}{
		{"empty", users, "", false},
		{"id alias", users, "id", false},
		{"storage id", users, "_id", false},
		{"declared", users, "email", false},
		{"sub document path", translations, "outputTexts.isoCode", false},
		{"undeclared", users, "salary", true},
		{"operator", users, "$where", true},
		{"embedded operator", users, "email.$ne", true},
		{"hidden", users, "passwd", true},
		{"leading dot", users, ".email", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.CheckField(tt.field)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckField(%q) error = %v, wantErr %v", tt.field, err, tt.wantErr)
			}
		})
	}
}

func TestCollection_ValidateDocument(t *testing.T) {
	r := newTestRegistry(t, false)
	brands, _ := r.Lookup("brands")

	valid := map[string]interface{}{
		"brandName": "Acme", "companyName": "Acme Corp", "logo": "acme.png", "web": "acme.example",
	}
	if err := brands.ValidateDocument(valid); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}

	missing := map[string]interface{}{"brandName": "Acme"}
	if err := brands.ValidateDocument(missing); err == nil {
		t.Error("expected error for missing required fields")
	}

	wrongType := map[string]interface{}{
		"brandName": "Acme", "companyName": "Acme Corp", "logo": "acme.png", "web": 42.0,
	}
	if err := brands.ValidateDocument(wrongType); err == nil {
		t.Error("expected error for wrong field type")
	}

	operator := map[string]interface{}{
		"brandName": "Acme", "companyName": "Acme Corp", "logo": "acme.png", "web": "acme.example",
		"$set": map[string]interface{}{"web": "x"},
	}
	if err := brands.ValidateDocument(operator); err == nil {
		t.Error("expected error for operator key")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := newTestRegistry(t, false)
	names := r.Names()
	if len(names) != len(DefaultCollections()) {
		t.Fatalf("got %d names", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}

func TestCollection_Indexes(t *testing.T) {
	r := newTestRegistry(t, false)
	tests := []struct {
		collection string
		want       []Index
	}{
		{collection: "products", want: []Index{{Field: "sku", Unique: true}}},
		{collection: "productmovements", want: []Index{{Field: "productSku"}}},
		{collection: "users", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.collection, func(t *testing.T) {
			c, ok := r.Lookup(tt.collection)
			if !ok {
				t.Fatalf("Lookup(%q) failed", tt.collection)
			}
			got := c.Indexes()
			if len(got) != len(tt.want) {
				t.Fatalf("Indexes() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Indexes()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
