package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/OdoTrack/OdoTrack/internal/clock"
	"github.com/OdoTrack/OdoTrack/internal/common/errs"
	"github.com/OdoTrack/OdoTrack/internal/common/logger"
	"github.com/OdoTrack/OdoTrack/internal/ledger"
)

func newTestService(mock *clock.Mock) *Service {
	return NewService(NewStore(), logger.Nop(),
		WithClock(mock),
		WithDelayFunc(ledger.ScaledDelay(1)), // distance/speed 毫秒，测试友好
	)
}

func TestCreateAndGetVehicle(t *testing.T) {
	svc := newTestService(clock.NewMock())
	ctx := context.Background()

	rec, err := svc.CreateVehicle(ctx, CreateVehicleInput{Make: " toyota ", Model: "prius"})
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}
	if rec.Make != "toyota" || rec.Model != "prius" {
		t.Fatalf("identity mismatch: %s %s", rec.Make, rec.Model)
	}
	if rec.Ledger.Odometer() != 0 {
		t.Fatalf("new vehicle odometer must be 0")
	}

	got, err := svc.GetVehicle(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetVehicle: %v", err)
	}
	if got.ID != rec.ID {
		t.Fatalf("id mismatch")
	}

	if _, err := svc.GetVehicle(ctx, "missing"); !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestCreateVehicleValidation(t *testing.T) {
	svc := newTestService(clock.NewMock())
	ctx := context.Background()

	if _, err := svc.CreateVehicle(ctx, CreateVehicleInput{Model: "prius"}); !errs.IsKind(err, errs.KindInvalidArgument) {
		t.Fatalf("expected invalid_argument for empty make, got %v", err)
	}
	if _, err := svc.CreateVehicle(ctx, CreateVehicleInput{Make: "toyota"}); !errs.IsKind(err, errs.KindInvalidArgument) {
		t.Fatalf("expected invalid_argument for empty model, got %v", err)
	}
}

func TestListVehiclesPaging(t *testing.T) {
	svc := newTestService(clock.NewMock())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.CreateVehicle(ctx, CreateVehicleInput{Make: "toyota", Model: "prius"}); err != nil {
			t.Fatalf("CreateVehicle: %v", err)
		}
	}

	recs, total, err := svc.ListVehicles(ctx, 0, 2)
	if err != nil {
		t.Fatalf("ListVehicles: %v", err)
	}
	if total != 5 || len(recs) != 2 {
		t.Fatalf("expected total=5 page=2, got total=%d page=%d", total, len(recs))
	}

	recs, total, err = svc.ListVehicles(ctx, 4, 2)
	if err != nil {
		t.Fatalf("ListVehicles: %v", err)
	}
	if total != 5 || len(recs) != 1 {
		t.Fatalf("expected last page of 1, got %d", len(recs))
	}

	recs, _, err = svc.ListVehicles(ctx, 100, 2)
	if err != nil {
		t.Fatalf("ListVehicles: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty page past end, got %d", len(recs))
	}
}

func TestDriveThroughService(t *testing.T) {
	svc := newTestService(clock.NewMock())
	ctx := context.Background()

	rec, err := svc.CreateVehicle(ctx, CreateVehicleInput{Make: "toyota", Model: "prius"})
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}

	distance, odometer, err := svc.Drive(ctx, rec.ID, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if distance != 6 || odometer != 6 {
		t.Fatalf("expected 6/6, got %v/%v", distance, odometer)
	}

	if _, _, err := svc.Drive(ctx, rec.ID, nil); !errs.IsKind(err, errs.KindInvalidArgument) {
		t.Fatalf("expected invalid_argument for empty legs, got %v", err)
	}
	if _, _, err := svc.Drive(ctx, "missing", []float64{1}); !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestTripLifecycleThroughService(t *testing.T) {
	mock := clock.NewMock()
	svc := newTestService(mock)
	ctx := context.Background()

	rec, err := svc.CreateVehicle(ctx, CreateVehicleInput{Make: "toyota", Model: "prius"})
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}

	tr, err := svc.StartTrip(ctx, rec.ID, 1, []float64{6}) // wait 6ms
	if err != nil {
		t.Fatalf("StartTrip: %v", err)
	}
	if tr.Trip.Status() != ledger.StatusPending {
		t.Fatalf("expected pending")
	}

	got, err := svc.GetTrip(ctx, rec.ID, tr.ID)
	if err != nil {
		t.Fatalf("GetTrip: %v", err)
	}
	if got.ID != tr.ID {
		t.Fatalf("trip id mismatch")
	}

	mock.Advance(6 * time.Millisecond)
	if tr.Trip.Status() != ledger.StatusCompleted {
		t.Fatalf("expected completed")
	}
	if rec.Ledger.Odometer() != 6 {
		t.Fatalf("odometer = %v, want 6", rec.Ledger.Odometer())
	}

	// 行程挂在别的车下查不到
	other, err := svc.CreateVehicle(ctx, CreateVehicleInput{Make: "honda", Model: "fit"})
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}
	if _, err := svc.GetTrip(ctx, other.ID, tr.ID); !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("expected not_found for foreign trip, got %v", err)
	}
}

func TestStartTripValidation(t *testing.T) {
	svc := newTestService(clock.NewMock())
	ctx := context.Background()

	rec, err := svc.CreateVehicle(ctx, CreateVehicleInput{Make: "toyota", Model: "prius"})
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}

	if _, err := svc.StartTrip(ctx, rec.ID, 0, []float64{1}); !errs.IsKind(err, errs.KindInvalidArgument) {
		t.Fatalf("expected invalid_argument for speed=0, got %v", err)
	}
	if _, err := svc.StartTrip(ctx, rec.ID, 10, nil); !errs.IsKind(err, errs.KindInvalidArgument) {
		t.Fatalf("expected invalid_argument for empty legs, got %v", err)
	}
	if rec.Ledger.Odometer() != 0 {
		t.Fatalf("odometer must be untouched, got %v", rec.Ledger.Odometer())
	}
}
