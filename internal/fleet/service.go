package fleet

import (
	"context"
	"strings"

	"github.com/OdoTrack/OdoTrack/internal/clock"
	"github.com/OdoTrack/OdoTrack/internal/common/errs"
	"github.com/OdoTrack/OdoTrack/internal/common/logger"
	"github.com/OdoTrack/OdoTrack/internal/ledger"
	"github.com/google/uuid"
)

// Service 封装车队台账的核心用例（不依赖 HTTP），便于复用和测试。
// 每辆车的记账语义完全由 internal/ledger 承担。
type Service struct {
	store *Store
	clk   clock.Clock
	delay ledger.DelayFunc
	log   logger.Logger
}

// Option Service 构造选项。
type Option func(*Service)

// WithClock 注入时钟（传给每辆新车）。
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clk = c
		}
	}
}

// WithDelayFunc 注入等待公式（传给每辆新车）。
func WithDelayFunc(fn ledger.DelayFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.delay = fn
		}
	}
}

func NewService(store *Store, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		clk:   clock.New(),
		delay: ledger.DefaultDelay,
		log:   log,
	}
	for _, apply := range opts {
		if apply != nil {
			apply(s)
		}
	}
	return s
}

// CreateVehicleInput 登记车辆的入参。
type CreateVehicleInput struct {
	Make  string
	Model string
}

func (s *Service) CreateVehicle(ctx context.Context, in CreateVehicleInput) (*VehicleRecord, error) {
	const op = "fleet.CreateVehicle"
	if s == nil || s.store == nil {
		return nil, errs.New(errs.KindInternal, op, "service not initialized")
	}

	mk := strings.TrimSpace(in.Make)
	model := strings.TrimSpace(in.Model)
	if mk == "" {
		return nil, errs.New(errs.KindInvalidArgument, op, "make required")
	}
	if model == "" {
		return nil, errs.New(errs.KindInvalidArgument, op, "model required")
	}

	rec := &VehicleRecord{
		ID:        uuid.NewString(),
		Make:      mk,
		Model:     model,
		CreatedAt: s.clk.Now(),
		Ledger: ledger.New(mk, model,
			ledger.WithClock(s.clk),
			ledger.WithDelayFunc(s.delay),
			ledger.WithLogger(s.log),
		),
	}
	s.store.PutVehicle(rec)

	if s.log != nil {
		s.log.Infof("vehicle registered: %s (%s %s)", rec.ID, mk, model)
	}
	return rec, nil
}

func (s *Service) GetVehicle(ctx context.Context, id string) (*VehicleRecord, error) {
	const op = "fleet.GetVehicle"
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errs.New(errs.KindInvalidArgument, op, "id required")
	}
	return s.store.FindVehicle(id)
}

func (s *Service) ListVehicles(ctx context.Context, offset, limit int) ([]*VehicleRecord, int64, error) {
	return s.store.ListVehicles(offset, limit)
}

// Drive 立即记账：返回本次里程和记账后的总里程。
func (s *Service) Drive(ctx context.Context, vehicleID string, legs []float64) (distance, odometer float64, err error) {
	rec, err := s.GetVehicle(ctx, vehicleID)
	if err != nil {
		return 0, 0, err
	}
	distance, err = rec.Ledger.Drive(legs...)
	if err != nil {
		return 0, 0, err
	}
	return distance, rec.Ledger.Odometer(), nil
}

// StartTrip 延迟记账：立即返回行程记录，入账要等定时器触发。
func (s *Service) StartTrip(ctx context.Context, vehicleID string, speed float64, legs []float64) (*TripRecord, error) {
	rec, err := s.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	trip, err := rec.Ledger.DriveAsync(speed, legs...)
	if err != nil {
		return nil, err
	}

	tr := &TripRecord{
		ID:        trip.ID(),
		VehicleID: rec.ID,
		CreatedAt: s.clk.Now(),
		Trip:      trip,
	}
	s.store.PutTrip(tr)
	return tr, nil
}

func (s *Service) GetTrip(ctx context.Context, vehicleID, tripID string) (*TripRecord, error) {
	const op = "fleet.GetTrip"
	vehicleID = strings.TrimSpace(vehicleID)
	tripID = strings.TrimSpace(tripID)
	if vehicleID == "" || tripID == "" {
		return nil, errs.New(errs.KindInvalidArgument, op, "vehicle id and trip id required")
	}
	if _, err := s.store.FindVehicle(vehicleID); err != nil {
		return nil, err
	}
	return s.store.FindTrip(vehicleID, tripID)
}
