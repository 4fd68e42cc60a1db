package core

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestMovementReference(t *testing.T) {
	tests := []struct {
		kind, want string
	}{
		{MovementIn, "Entrada de stock - Lápiz"},
		{MovementOut, "Salida de stock - Lápiz"},
		{MovementNew, "Producto nuevo - Lápiz"},
		{"Ajuste", ""},
	}
	for _, tt := range tests {
		if got := MovementReference(tt.kind, "Lápiz"); got != tt.want {
			t.Errorf("MovementReference(%q) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestMovementInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      MovementInput
		wantErr bool
	}{
		{"valid", MovementInput{ProductID: 1, Type: MovementIn, Quantity: 2}, false},
		{"unknown type", MovementInput{ProductID: 1, Type: "Ajuste", Quantity: 2}, true},
		{"zero quantity", MovementInput{ProductID: 1, Type: MovementOut}, true},
		{"no product", MovementInput{Type: MovementNew, Quantity: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.in.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildMovementQuery(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	query, args := buildMovementQuery(MovementFilter{Type: MovementOut, From: from, To: to, Limit: 10})

	for _, frag := range []string{"m.tipo = $1", "m.fecha >= $2", "m.fecha <= $3", "LIMIT $4", "ORDER BY m.fecha DESC"} {
		if !strings.Contains(query, frag) {
			t.Errorf("query missing %q", frag)
		}
	}
	if len(args) != 4 || args[3] != 10 {
		t.Errorf("unexpected args %v", args)
	}

	query, args = buildMovementQuery(MovementFilter{Type: "Todos"})
	if strings.Contains(query, "WHERE") || len(args) != 0 {
		t.Errorf("Todos should not filter: %s %v", query, args)
	}
}

func TestActorID(t *testing.T) {
	if actorID(context.Background()) != nil {
		t.Error("expected nil without actor")
	}
	ctx := ContextWithActor(context.Background(), Actor{ID: 9, Username: "ana"})
	if id := actorID(ctx); id == nil || *id != 9 {
		t.Errorf("actorID() = %v, want 9", id)
	}
}
