package fleet

import (
	"sync"
	"time"

	"github.com/OdoTrack/OdoTrack/internal/common/errs"
	"github.com/OdoTrack/OdoTrack/internal/ledger"
)

// VehicleRecord 注册到车队的一辆车。台账语义都在 Ledger 上，这里只是编目。
type VehicleRecord struct {
	ID        string
	Make      string
	Model     string
	CreatedAt time.Time
	Ledger    *ledger.Vehicle
}

// TripRecord 某辆车的一次延迟记账。
type TripRecord struct {
	ID        string
	VehicleID string
	CreatedAt time.Time
	Trip      *ledger.Trip
}

// Store 内存存储。本服务不落库，车队目录随进程生命周期存在。
type Store struct {
	mu       sync.RWMutex
	vehicles map[string]*VehicleRecord
	trips    map[string]*TripRecord
	order    []string // 创建顺序，List 按此分页
}

func NewStore() *Store {
	return &Store{
		vehicles: make(map[string]*VehicleRecord),
		trips:    make(map[string]*TripRecord),
	}
}

func (s *Store) PutVehicle(rec *VehicleRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vehicles[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.vehicles[rec.ID] = rec
}

func (s *Store) FindVehicle(id string) (*VehicleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.vehicles[id]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "fleet.FindVehicle", "vehicle %s not found", id)
	}
	return rec, nil
}

// ListVehicles 按创建顺序分页。
func (s *Store) ListVehicles(offset, limit int) ([]*VehicleRecord, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(len(s.order))
	if offset >= len(s.order) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(s.order) {
		end = len(s.order)
	}

	out := make([]*VehicleRecord, 0, end-offset)
	for _, id := range s.order[offset:end] {
		out = append(out, s.vehicles[id])
	}
	return out, total, nil
}

func (s *Store) PutTrip(rec *TripRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips[rec.ID] = rec
}

// FindTrip 查某辆车下的行程；vehicleID 不匹配按不存在处理。
func (s *Store) FindTrip(vehicleID, tripID string) (*TripRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.trips[tripID]
	if !ok || rec.VehicleID != vehicleID {
		return nil, errs.Newf(errs.KindNotFound, "fleet.FindTrip", "trip %s not found", tripID)
	}
	return rec, nil
}
