package core

import (
	"strings"
	"testing"
)

func TestPurchaseInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      PurchaseInput
		wantErr bool
	}{
		{"valid", PurchaseInput{Product: "Tóner", Quantity: 3, Priority: PriorityHigh}, false},
		{"missing product", PurchaseInput{Quantity: 3, Priority: PriorityLow}, true},
		{"bad priority", PurchaseInput{Product: "Tóner", Quantity: 3, Priority: "Urgente"}, true},
		{"zero quantity", PurchaseInput{Product: "Tóner", Priority: PriorityMedium}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.in.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildPurchaseQuery(t *testing.T) {
	query, args := buildPurchaseQuery(PurchasePending, "Todos")
	if !strings.Contains(query, "WHERE estado = $1") || strings.Contains(query, "prioridad = $") {
		t.Errorf("unexpected filter: %s", query)
	}
	if len(args) != 1 || args[0] != PurchasePending {
		t.Errorf("unexpected args %v", args)
	}

	high := strings.Index(query, "'Alta' THEN 1")
	low := strings.Index(query, "'Baja' THEN 3")
	if high < 0 || low < 0 || high > low {
		t.Error("priority ordering should rank Alta before Baja")
	}
	if !strings.Contains(query, "'N/A'") {
		t.Error("supplier should fall back to N/A")
	}

	query, args = buildPurchaseQuery("", "")
	if strings.Contains(query, "WHERE") || len(args) != 0 {
		t.Errorf("empty filters should select everything: %v", args)
	}
}
