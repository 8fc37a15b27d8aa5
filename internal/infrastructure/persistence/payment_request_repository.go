package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/procurement"
	"github.com/procurement/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRequestRepository implements PaymentRequestRepository using GORM
type GormPaymentRequestRepository struct {
	db *gorm.DB
}

// NewGormPaymentRequestRepository creates a new GormPaymentRequestRepository
func NewGormPaymentRequestRepository(db *gorm.DB) *GormPaymentRequestRepository {
	return &GormPaymentRequestRepository{db: db}
}

// FindByID finds a payment request by its ID
func (r *GormPaymentRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*procurement.PaymentRequest, error) {
	var model models.PaymentRequestModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a payment request by its identifier
func (r *GormPaymentRequestRepository) FindByNumber(ctx context.Context, number string) (*procurement.PaymentRequest, error) {
	var model models.PaymentRequestModel
	if err := r.db.WithContext(ctx).Where("number = ?", number).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAll finds payment requests matching the filter and returns the page with the total count
func (r *GormPaymentRequestRepository) FindAll(ctx context.Context, filter procurement.PaymentRequestFilter) ([]procurement.PaymentRequest, int64, error) {
	var total int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.PaymentRequestModel{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	sortField := ValidateSortField(filter.OrderBy, PaymentRequestSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)

	var requestModels []models.PaymentRequestModel
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.PaymentRequestModel{}), filter).
		Order(sortField + " " + sortOrder).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&requestModels).Error; err != nil {
		return nil, 0, translateError(err)
	}

	requests := make([]procurement.PaymentRequest, len(requestModels))
	for i := range requestModels {
		requests[i] = *requestModels[i].ToDomain()
	}
	return requests, total, nil
}

// Create inserts a new payment request. A unique violation on number surfaces as DUPLICATE_IDENTIFIER.
func (r *GormPaymentRequestRepository) Create(ctx context.Context, request *procurement.PaymentRequest) error {
	model := models.PaymentRequestModelFromDomain(request)
	return translateError(r.db.WithContext(ctx).Create(model).Error)
}

// SaveWithLock saves with optimistic locking
func (r *GormPaymentRequestRepository) SaveWithLock(ctx context.Context, request *procurement.PaymentRequest) error {
	model := models.PaymentRequestModelFromDomain(request)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", request.ID, request.Version-1).
		Select("*").
		Omit("created_at").
		Updates(model)

	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return concurrencyConflict("payment request " + request.Number)
	}
	return nil
}

func (r *GormPaymentRequestRepository) applyFilter(query *gorm.DB, filter procurement.PaymentRequestFilter) *gorm.DB {
	if !filter.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.RequesterID != nil {
		query = query.Where("requester_id = ?", *filter.RequesterID)
	}
	if filter.OrderReference != "" {
		query = query.Where("order_reference = ?", filter.OrderReference)
	}
	if search, ok := filter.Filters["search"].(string); ok && search != "" {
		query = query.Where("number LIKE ?", "%"+search+"%")
	}
	return query
}

// Ensure GormPaymentRequestRepository implements PaymentRequestRepository
var _ procurement.PaymentRequestRepository = (*GormPaymentRequestRepository)(nil)
