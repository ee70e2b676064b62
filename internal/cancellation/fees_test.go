package cancellation

import (
	"testing"

	"github.com/partdash/partdash-backend/pkg/enums"
)

func TestCalculateFee_Schedule(t *testing.T) {
	tests := []struct {
		name            string
		stage           enums.CancellationStage
		partPrice       int64
		deliveryFee     int64
		total           int64
		wantFee         int64
		wantDelivery    int64
		wantRefund      int64
		wantCancellable bool
	}{
		{
			name:            "before payment is free",
			stage:           enums.StageBeforePayment,
			partPrice:       50000,
			deliveryFee:     5000,
			total:           50000,
			wantFee:         0,
			wantRefund:      50000,
			wantCancellable: true,
		},
		{
			name:            "after payment takes five percent",
			stage:           enums.StageAfterPayment,
			partPrice:       50000,
			deliveryFee:     5000,
			total:           50000,
			wantFee:         2500,
			wantRefund:      47500,
			wantCancellable: true,
		},
		{
			name:            "during preparation takes ten percent",
			stage:           enums.StageDuringPreparation,
			partPrice:       50000,
			deliveryFee:     5000,
			total:           50000,
			wantFee:         5000,
			wantRefund:      45000,
			wantCancellable: true,
		},
		{
			name:            "in delivery also keeps the delivery fee",
			stage:           enums.StageInDelivery,
			partPrice:       50000,
			deliveryFee:     5000,
			total:           50000,
			wantFee:         5000,
			wantDelivery:    5000,
			wantRefund:      40000,
			wantCancellable: true,
		},
		{
			name:            "after delivery is not cancellable",
			stage:           enums.StageAfterDelivery,
			partPrice:       50000,
			deliveryFee:     5000,
			total:           50000,
			wantCancellable: false,
		},
		{
			name:            "already cancelled is not cancellable",
			stage:           enums.StageAlreadyCancelled,
			partPrice:       50000,
			total:           50000,
			wantCancellable: false,
		},
		{
			name:            "fee rounds half up on minor units",
			stage:           enums.StageDuringPreparation,
			partPrice:       5005,
			total:           5005,
			wantFee:         501,
			wantRefund:      4504,
			wantCancellable: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			quote := CalculateFee(tc.stage, tc.partPrice, tc.deliveryFee, tc.total)
			if quote.Cancellable != tc.wantCancellable {
				t.Fatalf("cancellable = %v, want %v", quote.Cancellable, tc.wantCancellable)
			}
			if !quote.Cancellable {
				return
			}
			if quote.FeeMinor != tc.wantFee {
				t.Errorf("fee = %d, want %d", quote.FeeMinor, tc.wantFee)
			}
			if quote.DeliveryRetainedMinor != tc.wantDelivery {
				t.Errorf("delivery retained = %d, want %d", quote.DeliveryRetainedMinor, tc.wantDelivery)
			}
			if quote.RefundMinor != tc.wantRefund {
				t.Errorf("refund = %d, want %d", quote.RefundMinor, tc.wantRefund)
			}
			if sum := quote.FeeMinor + quote.DeliveryRetainedMinor + quote.RefundMinor; sum != tc.total {
				t.Errorf("fee+retained+refund = %d, want total %d", sum, tc.total)
			}
		})
	}
}
