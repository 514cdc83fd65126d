package store

import (
	"context"
	"errors"

	"metaldesk/pkg/model"

	"gorm.io/gorm"
)

// Gorm is the mysql backed Store.
type Gorm struct {
	db *gorm.DB
}

var _ Store = (*Gorm)(nil)

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Gorm) CreateTicket(ctx context.Context, t *model.Ticket) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Gorm) GetTicket(ctx context.Context, id int64) (t model.Ticket, err error) {
	err = notFound(s.db.WithContext(ctx).Where("`id`=?", id).First(&t).Error)
	return
}

func (s *Gorm) UpdateTicket(ctx context.Context, id int64, patch map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&model.Ticket{}).Where("`id`=?", id).Updates(patch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Gorm) ListTickets(ctx context.Context, f TicketFilter) (tickets []model.Ticket, err error) {
	tx := s.db.WithContext(ctx).Model(&model.Ticket{})
	if len(f.IDs) > 0 {
		tx = tx.Where("`id` IN ?", f.IDs)
	}
	if f.Side != "" {
		tx = tx.Where("`side`=?", f.Side)
	}
	if f.Status != "" {
		tx = tx.Where("`status`=?", f.Status)
	}
	if f.CommodityType != "" {
		tx = tx.Where("`commodity_type`=?", f.CommodityType)
	}
	if f.Unmatched {
		tx = tx.Where("NOT EXISTS (SELECT 1 FROM " + model.TableInventoryMatches +
			" m WHERE m.buy_ticket_id = " + model.TableTickets + ".id OR m.sell_ticket_id = " + model.TableTickets + ".id)")
	}
	err = tx.Order("id asc").Find(&tickets).Error
	return
}

func (s *Gorm) CreateOrder(ctx context.Context, o *model.Order) error {
	return s.db.WithContext(ctx).Create(o).Error
}

func (s *Gorm) GetOrder(ctx context.Context, id string) (o model.Order, err error) {
	err = notFound(s.db.WithContext(ctx).Where("`id`=?", id).First(&o).Error)
	return
}

func (s *Gorm) CreateInventoryMatches(ctx context.Context, rows []model.InventoryMatch) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

func (s *Gorm) ListInventoryMatches(ctx context.Context, orderID string) (rows []model.InventoryMatch, err error) {
	err = s.db.WithContext(ctx).Where("`order_id`=?", orderID).Order("id asc").Find(&rows).Error
	return
}

func (s *Gorm) CreatePlannedShipments(ctx context.Context, rows []model.PlannedShipment) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

func (s *Gorm) ListPlannedShipments(ctx context.Context, orderID string) (rows []model.PlannedShipment, err error) {
	err = s.db.WithContext(ctx).Where("`order_id`=?", orderID).Order("seq asc").Find(&rows).Error
	return
}

func (s *Gorm) CreateHedgeRequests(ctx context.Context, rows []model.HedgeRequest) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

func (s *Gorm) ListHedgeRequests(ctx context.Context, orderID string) (rows []model.HedgeRequest, err error) {
	err = s.db.WithContext(ctx).Where("`order_id`=?", orderID).Order("id asc").Find(&rows).Error
	return
}

func (s *Gorm) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx})
	})
}
