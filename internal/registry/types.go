// Package registry is the scoped persistence service for UMKM business
// records. Every operation is scoped by owner id or partition; backend
// selection between the remote relational store and the device-local
// fallback happens once at startup.
package registry

import (
	"context"
	"errors"
	"time"

	"sentraumkm.org/internal/identity"
)

// Status is the lifecycle state of a registered business.
type Status string

const (
	StatusActive            Status = "Active"
	StatusInactive          Status = "Inactive"
	StatusTemporarilyClosed Status = "TemporarilyClosed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusTemporarilyClosed:
		return true
	}
	return false
}

// Business is a registered micro-enterprise. OwnerID is set at creation and
// never reassigned; it is a relation back to the registered user, not an
// ownership transfer mechanism. Monetary figures are rupiah, no floats.
type Business struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	OwnerName          string    `json:"owner_name"`
	NationalID         string    `json:"national_id,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	Address            string    `json:"address,omitempty"`
	Category           string    `json:"category"`
	SubCategory        string    `json:"sub_category,omitempty"`
	Description        string    `json:"description,omitempty"`
	Product            string    `json:"product,omitempty"`
	ProductionCapacity int64     `json:"production_capacity"`
	ProductionUnit     string    `json:"production_unit,omitempty"`
	OperatingPeriod    int64     `json:"operating_period"`
	PeriodUnit         string    `json:"period_unit,omitempty"`
	WorkDaysPerWeek    int       `json:"work_days_per_week"`
	TotalProduction    int64     `json:"total_production"`
	BudgetPlan         int64     `json:"budget_plan"`
	FixedCost          int64     `json:"fixed_cost"`
	VariableCost       int64     `json:"variable_cost"`
	InitialCapital     int64     `json:"initial_capital"`
	RevenueTarget      int64     `json:"revenue_target"`
	EmployeeCount      int       `json:"employee_count"`
	Status             Status    `json:"status"`
	RegisteredAt       time.Time `json:"registered_at"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
	OwnerID            string    `json:"owner_id"`
}

// Query scopes a list call. Exactly one of OwnerID/Partition is meaningful;
// a partition query resolves to the records of every user registered under
// that partition.
type Query struct {
	OwnerID   string
	Partition string
}

var (
	ErrNotFound           = errors.New("registry: not found")
	ErrInvalidOwner       = errors.New("registry: invalid owner id")
	ErrInvalidStatus      = errors.New("registry: invalid status")
	ErrBackendUnavailable = errors.New("registry: backend unavailable")
)

// Store is the backend contract. Both the remote relational adapter and the
// local fallback adapter implement it; business logic depends only on this
// interface.
type Store interface {
	List(ctx context.Context, q Query) ([]Business, error)
	Create(ctx context.Context, rec Business) (Business, error)
	Update(ctx context.Context, id string, rec Business, ownerID string) (Business, error)
	Delete(ctx context.Context, id, ownerID string) error
	GetByID(ctx context.Context, id, ownerID string) (Business, error)
}

// RemoteStore is a Store that also synchronizes owner identity rows, which
// must exist remotely before a record can reference them.
type RemoteStore interface {
	Store
	EnsureOwner(ctx context.Context, owner identity.Owner) error
}

// OwnerSource resolves identity facts the persistence layer needs: the
// partition membership two-hop and owner profiles for remote sync.
type OwnerSource interface {
	OwnerByID(id string) (identity.Owner, bool, error)
	OwnersInPartition(partition string) ([]string, error)
}
