// Package tenant scopes GORM queries to one academy.
//
// Every billing table carries a tenant_id column. Request handlers put the
// tenant into the context (see logger.WithTenantID); repositories receive it
// explicitly and apply Scope.
//
//	db.Scopes(tenant.Scope(tenantID)).Find(&payments)
package tenant

import (
	"context"
	"errors"

	"github.com/academy/feebilling/internal/infrastructure/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantIDRequired is returned when tenant_id is required but not found
var ErrTenantIDRequired = errors.New("tenant_id is required but not found in context")

// ErrInvalidTenantID is returned when tenant_id format is invalid
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

// Column is the tenant column shared by every billing table
const Column = "tenant_id"

// Scope applies tenant filtering to GORM queries. A nil tenant adds an
// error to the statement instead of silently matching nothing.
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where(db.Statement.Quote(Column)+" = ?", tenantID)
	}
}

// FromContext returns the tenant stored in ctx by the tenant middleware
func FromContext(ctx context.Context) (uuid.UUID, error) {
	raw := logger.GetTenantID(ctx)
	if raw == "" {
		return uuid.Nil, ErrTenantIDRequired
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidTenantID
	}
	return id, nil
}

// ScopeFromContext applies Scope with the tenant from ctx
func ScopeFromContext(ctx context.Context) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		id, err := FromContext(ctx)
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		return Scope(id)(db)
	}
}
