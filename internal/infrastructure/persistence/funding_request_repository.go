package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/procurement/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormFundingRequestRepository implements FundingRequestRepository using GORM
type GormFundingRequestRepository struct {
	db *gorm.DB
}

// NewGormFundingRequestRepository creates a new GormFundingRequestRepository
func NewGormFundingRequestRepository(db *gorm.DB) *GormFundingRequestRepository {
	return &GormFundingRequestRepository{db: db}
}

// FindByID finds a funding request by its ID
func (r *GormFundingRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*caisse.FundingRequest, error) {
	var model models.FundingRequestModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a funding request by its identifier
func (r *GormFundingRequestRepository) FindByNumber(ctx context.Context, number string) (*caisse.FundingRequest, error) {
	var model models.FundingRequestModel
	if err := r.db.WithContext(ctx).Where("number = ?", number).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAll finds funding requests matching the filter
func (r *GormFundingRequestRepository) FindAll(ctx context.Context, filter caisse.FundingRequestFilter) ([]caisse.FundingRequest, int64, error) {
	var total int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.FundingRequestModel{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	sortField := ValidateSortField(filter.OrderBy, FundingRequestSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)

	var requestModels []models.FundingRequestModel
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.FundingRequestModel{}), filter).
		Order(sortField + " " + sortOrder).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&requestModels).Error; err != nil {
		return nil, 0, translateError(err)
	}

	requests := make([]caisse.FundingRequest, len(requestModels))
	for i := range requestModels {
		requests[i] = *requestModels[i].ToDomain()
	}
	return requests, total, nil
}

// Create inserts a new funding request
func (r *GormFundingRequestRepository) Create(ctx context.Context, request *caisse.FundingRequest) error {
	return translateError(r.db.WithContext(ctx).Create(models.FundingRequestModelFromDomain(request)).Error)
}

// SaveWithLock saves with optimistic locking
func (r *GormFundingRequestRepository) SaveWithLock(ctx context.Context, request *caisse.FundingRequest) error {
	model := models.FundingRequestModelFromDomain(request)
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
		return concurrencyConflict("funding request " + request.Number)
	}
	return nil
}

func (r *GormFundingRequestRepository) applyFilter(query *gorm.DB, filter caisse.FundingRequestFilter) *gorm.DB {
	if filter.Stage != "" {
		query = query.Where("stage = ?", filter.Stage)
	}
	if filter.RequesterID != nil {
		query = query.Where("requester_id = ?", *filter.RequesterID)
	}
	if search, ok := filter.Filters["search"].(string); ok && search != "" {
		query = query.Where("number LIKE ?", "%"+search+"%")
	}
	return query
}

// Ensure GormFundingRequestRepository implements FundingRequestRepository
var _ caisse.FundingRequestRepository = (*GormFundingRequestRepository)(nil)
