package core

import (
	"strings"
	"testing"
)

func TestRatingText(t *testing.T) {
	one, four := 1, 4
	tests := []struct {
		in   *int
		want string
	}{
		{nil, "Sin valoración"},
		{&one, "1 Estrella"},
		{&four, "4 Estrellas"},
	}
	for _, tt := range tests {
		if got := RatingText(tt.in); got != tt.want {
			t.Errorf("RatingText() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"3", 3, false},
		{"4 Estrellas", 4, false},
		{"1 Estrella", 1, false},
		{"9 Estrellas", 0, true},
		{"muchas", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseRating(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseRating(%q) = (%d, %v), want (%d, err=%v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestBuildSupplierQuery(t *testing.T) {
	query, args, err := buildSupplierQuery(SupplierFilter{Category: "Papelería", Rating: "5 Estrellas", Pricing: "Mayorista"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, frag := range []string{"c.nombre = $1", "p.valoracion = $2", "p.manejo_precios = $3", "STRING_AGG"} {
		if !strings.Contains(query, frag) {
			t.Errorf("query missing %q", frag)
		}
	}
	if len(args) != 3 || args[1] != 5 {
		t.Errorf("unexpected args %v", args)
	}

	if _, _, err := buildSupplierQuery(SupplierFilter{Rating: "x"}); err == nil {
		t.Error("expected error for invalid rating filter")
	}

	_, args, _ = buildSupplierQuery(SupplierFilter{Category: "Todas", Rating: "Todas", Pricing: "Todos"})
	if len(args) != 0 {
		t.Errorf("Todas/Todos should not filter, got %v", args)
	}
}

func TestSupplier_Validate(t *testing.T) {
	six := 6
	if err := (Supplier{Name: "Acme"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Supplier{}).Validate(); err == nil {
		t.Error("expected error for missing name")
	}
	if err := (Supplier{Name: "Acme", Rating: &six}).Validate(); err == nil {
		t.Error("expected error for rating out of range")
	}
}
