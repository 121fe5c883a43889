package store

import (
	"context"
	"errors"
	"log"

	"github.com/smartfarmlink/smartfarm-backend-go/database"
	"github.com/smartfarmlink/smartfarm-backend-go/errs"
	"github.com/smartfarmlink/smartfarm-backend-go/models"
)

func OrderPath(id string) string {
	return "orders/" + id
}

func BuyerIndexPath(buyerID string) string {
	return "orders_by_buyer/" + buyerID
}

func SellerIndexPath(sellerID string) string {
	return "orders_by_seller/" + sellerID
}

// OrderRepository reads and writes orders/{id} and keeps the buyer and
// seller indexes in step. The order write and the index writes are separate
// operations: an order can end up unindexed if the process dies in between.
type OrderRepository struct {
	ds         database.DocumentStore
	maxRetries int
}

func NewOrderRepository(ds database.DocumentStore, maxRetries int) *OrderRepository {
	return &OrderRepository{ds: ds, maxRetries: maxRetries}
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	doc, err := r.ds.Get(ctx, OrderPath(id))
	if err != nil {
		return nil, errs.Storage("get order", err)
	}
	if !doc.Exists {
		return nil, errs.NotFound("order %s not found", id)
	}

	var order models.Order
	if err := doc.Decode(&order); err != nil {
		return nil, errs.Storage("decode order "+id, err)
	}
	order.Version = doc.Version
	return &order, nil
}

// BuyerOrderIDs returns the buyer's order ids in index order.
func (r *OrderRepository) BuyerOrderIDs(ctx context.Context, buyerID string) ([]string, error) {
	ix, _, err := readIndex(ctx, r.ds, BuyerIndexPath(buyerID))
	if err != nil {
		return nil, err
	}
	return ix.IDs, nil
}

func (r *OrderRepository) ListOrdersForBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	return r.listIndexed(ctx, BuyerIndexPath(buyerID))
}

func (r *OrderRepository) ListOrdersForSeller(ctx context.Context, sellerID string) ([]models.Order, error) {
	return r.listIndexed(ctx, SellerIndexPath(sellerID))
}

// listIndexed loads every order named by the index at path, skipping ids
// whose order document is gone.
func (r *OrderRepository) listIndexed(ctx context.Context, path string) ([]models.Order, error) {
	ix, _, err := readIndex(ctx, r.ds, path)
	if err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(ix.IDs))
	for _, id := range ix.IDs {
		order, err := r.GetOrder(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			log.Printf("Skipping dangling order %s in %s", id, path)
			continue
		}
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// SaveOrder overwrites orders/{id} if it is still at order.Version (0 creates
// it) and then adds the id to the buyer and seller indexes. A version
// mismatch returns an errs.KindConflict error and writes nothing. Index
// failures are logged; the order write stands.
func (r *OrderRepository) SaveOrder(ctx context.Context, order *models.Order) error {
	version, err := r.ds.CompareAndSet(ctx, OrderPath(order.ID), order.Version, order)
	if err != nil {
		return errs.Storage("save order", err)
	}
	order.Version = version

	if err := addToIndex(ctx, r.ds, BuyerIndexPath(order.BuyerID), order.ID, r.maxRetries); err != nil {
		log.Printf("Failed to index order %s for buyer %s: %v", order.ID, order.BuyerID, err)
	}
	if err := addToIndex(ctx, r.ds, SellerIndexPath(order.SellerID), order.ID, r.maxRetries); err != nil {
		log.Printf("Failed to index order %s for seller %s: %v", order.ID, order.SellerID, err)
	}
	return nil
}
