package cancellation

import (
	"testing"

	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/errors"
)

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		status enums.OrderStatus
		want   enums.CancellationStage
	}{
		{enums.OrderStatusPendingPayment, enums.StageBeforePayment},
		{enums.OrderStatusPaid, enums.StageAfterPayment},
		{enums.OrderStatusConfirmed, enums.StageAfterPayment},
		{enums.OrderStatusPreparing, enums.StageDuringPreparation},
		{enums.OrderStatusReadyForPickup, enums.StageDuringPreparation},
		{enums.OrderStatusAssigned, enums.StageInDelivery},
		{enums.OrderStatusPickedUp, enums.StageInDelivery},
		{enums.OrderStatusInTransit, enums.StageInDelivery},
		{enums.OrderStatusDelivered, enums.StageAfterDelivery},
		{enums.OrderStatusDisputed, enums.StageAfterDelivery},
		{enums.OrderStatusCompleted, enums.StageAfterDelivery},
		{enums.OrderStatusCancelledByCustomer, enums.StageAlreadyCancelled},
		{enums.OrderStatusCancelledByOperator, enums.StageAlreadyCancelled},
		{enums.OrderStatusRefunded, enums.StageAlreadyRefunded},
	}
	classifier := NewClassifier(false)
	for _, tc := range tests {
		got, err := classifier.Classify(tc.status)
		if err != nil {
			t.Fatalf("Classify(%s) error: %v", tc.status, err)
		}
		if got != tc.want {
			t.Errorf("Classify(%s) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestClassifier_AssignedRetainsDeliveryFee(t *testing.T) {
	stage, err := NewClassifier(false).Classify(enums.OrderStatusAssigned)
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if stage != enums.StageInDelivery {
		t.Fatalf("Classify(assigned) = %s, want %s", stage, enums.StageInDelivery)
	}

	// A courier is already committed once assigned, so the delivery fee is
	// kept even though the part has not moved yet.
	quote := CalculateFee(stage, 50000, 5000, 50000)
	if quote.DeliveryRetainedMinor != 5000 {
		t.Errorf("delivery retained = %d, want 5000", quote.DeliveryRetainedMinor)
	}
	if quote.FeeMinor != 5000 {
		t.Errorf("fee = %d, want 5000", quote.FeeMinor)
	}
	if quote.RefundMinor != 40000 {
		t.Errorf("refund = %d, want 40000", quote.RefundMinor)
	}
}

func TestClassifier_UnknownStatus(t *testing.T) {
	lenient := NewClassifier(false)
	got, err := lenient.Classify(enums.OrderStatus("legacy_state"))
	if err != nil {
		t.Fatalf("lenient Classify error: %v", err)
	}
	if got != enums.StageBeforePayment {
		t.Errorf("lenient Classify = %s, want %s", got, enums.StageBeforePayment)
	}

	strict := NewClassifier(true)
	if _, err := strict.Classify(enums.OrderStatus("legacy_state")); !errors.HasCode(err, errors.CodeStateConflict) {
		t.Errorf("strict Classify error = %v, want STATE_CONFLICT", err)
	}
}
